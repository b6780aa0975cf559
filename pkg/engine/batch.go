package engine

import "iggrowth/pkg/logger"

// NamedOp is one engine operation in a batch run
type NamedOp struct {
	Name string
	Run  func() error
}

// RunBatch runs the operations in order, logging and continuing on failure.
// This is a batch-oriented system: one operation failing must never prevent
// an unrelated scheduled operation from running in the same invocation. The
// failures are reported at the end.
func RunBatch(log logger.Logger, ops ...NamedOp) map[string]error {
	if log == nil {
		log = logger.GetLogger()
	}

	failures := make(map[string]error)
	for _, op := range ops {
		log.InfoWithFields("running operation", map[string]interface{}{"operation": op.Name})
		if err := op.Run(); err != nil {
			log.ErrorWithFields("operation failed", map[string]interface{}{
				"operation": op.Name, "error": err.Error(),
			})
			failures[op.Name] = err
			continue
		}
		log.InfoWithFields("operation finished", map[string]interface{}{"operation": op.Name})
	}
	return failures
}
