/*
Package types holds the types shared by every nodeflow package.

It sits at the bottom of the dependency graph and imports nothing from the
module. Today that is the structured error model: Error carries an
ErrorCode, a message, the originating node and an optional cause, and
GetErrorCode / IsErrorCode inspect wrapped chains with errors.As.
*/
package types
