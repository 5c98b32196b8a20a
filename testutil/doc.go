/*
Package testutil holds helpers shared by the package tests.

It depends on no other package of this module so that internal tests can
import it without cycles.

  - Contexts: TestContext, TestContextWithTimeout, CancelledContext; the
    cancel functions are registered with t.Cleanup.
  - Certificates: SelfSignedCert writes a throwaway ECDSA pair for
    127.0.0.1 and localhost, used by the TLS listener tests.
*/
package testutil
