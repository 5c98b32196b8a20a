/*
Package metrics exports NodeFlow runtime metrics to Prometheus.

A single Collector implements graph.Metrics, blackboard.Metrics and
logic.Observer, so it can be attached with graph.WithMetrics,
blackboard.WithMetrics and (*logic.Graph).Observe at the same time.

Exported series, all under the configured namespace:

  - flow_runs_total{graph,status}, flow_run_duration_seconds{graph},
    flow_active_runs
  - flow_nodes_executed_total{node_type,result},
    flow_node_duration_seconds{node_type}
  - graph_connections_rejected_total{reason},
    graph_nodes_added_total{node_type}, graph_nodes_removed_total{node_type}
  - blackboard_access_total{scope,op,result}
  - cache_hits_total{cache_type}, cache_misses_total{cache_type}
  - http_requests_total{method,path,status},
    http_request_duration_seconds{method,path}
*/
package metrics
