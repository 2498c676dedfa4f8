package workflows

import (
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/picking-engine/pkg/temporal"
)

// Registry is the part of a worker workflows register against
type Registry interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
}

// Register registers every picking workflow under its public name
func Register(r Registry) {
	r.RegisterWorkflowWithOptions(OrderBatchingWorkflow, workflow.RegisterOptions{Name: temporal.WorkflowNames.OrderBatching})
	r.RegisterWorkflowWithOptions(BatchPickingWorkflow, workflow.RegisterOptions{Name: temporal.WorkflowNames.BatchPicking})
}
