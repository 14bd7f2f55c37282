// Package logging provides structured logging for raftd nodes.
//
// # Creating a Logger
//
// Create a logger with configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/raftd/node1.log",
//	})
//
// Write to any io.Writer, which is how tests capture output:
//
//	logger := logging.NewWithWriter(&buf, logging.LevelDebug, logging.FormatText)
//
// For tests that do not inspect output, use a no-op logger:
//
//	logger := logging.NewNop()
//
// # Structured Logging
//
// Add key-value pairs to log entries. Error values are logged by their text:
//
//	logger.Info("became leader", "term", 7, "last_index", 42)
//	logger.Error("node halted", "error", err)
//
// # Request ID Tracking
//
// Every Raft frame carries a UUID request ID; handlers log with it so the
// request and reply lines of one RPC can be matched across nodes:
//
//	logger.WithRequestID(frame.RequestID.String()).Debug("handled rpc")
//
// # Contextual Fields
//
// Create loggers with persistent fields:
//
//	nodeLogger := logger.WithFields("node", id)
//	nodeLogger.Info("tick")
//
// # Output Formats
//
// Text format, fields sorted by key:
//
//	2026-02-18T10:30:00Z [info] became leader node=1 term=7
//
// JSON format:
//
//	{"ts":"2026-02-18T10:30:00Z","level":"info","msg":"became leader","node":1,"term":7}
package logging
