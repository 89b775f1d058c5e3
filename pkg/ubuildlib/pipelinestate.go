// Licensed under the MIT License.

package ubuildlib

// PipelineState tracks the pipeline through its fixed stage order. Failed is
// absorbing: it is reachable from every non-terminal state and always
// triggers resource release before the process exits.
type PipelineState int

const (
	StateIdle PipelineState = iota
	StateBootstrapping
	StateConfiguring
	StatePackageInstalling
	StateCleaning
	StateUnmounted
	StateAssembling
	StateDone
	StateFailed
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateBootstrapping:
		return "Bootstrapping"
	case StateConfiguring:
		return "Configuring"
	case StatePackageInstalling:
		return "PackageInstalling"
	case StateCleaning:
		return "Cleaning"
	case StateUnmounted:
		return "Unmounted"
	case StateAssembling:
		return "Assembling"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
