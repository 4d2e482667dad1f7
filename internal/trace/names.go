package trace

// Event names
const (
	// KubernetesEvent is the UST event carrying Kubernetes control-plane activity
	KubernetesEvent = "k8s_ust:event"
	// SchedSwitch is the kernel scheduler context switch event
	SchedSwitch = "sched_switch"
	// SyscallEntryMount is the kernel mount(2) entry event
	SyscallEntryMount = "syscall_entry_mount"
)

// Kubernetes event fields
const (
	FieldOperationName    = "op_name"
	FieldOperationContext = "op_ctx"
)

// Operation names of KubernetesEvent
const (
	OpEvent      = "Event"
	OpTerminated = "Terminated"
	OpCondition  = "Condition"
)

// Kernel event fields
const (
	FieldTID         = "context._tid"
	FieldProcName    = "context._procname"
	FieldCgroupNS    = "context._cgroup_ns"
	FieldDeviceName  = "dev_name"
	FieldCPU         = "cpu_id"
	FieldPrevTID     = "prev_tid"
	FieldNextTID     = "next_tid"
	ContainerInitTag = "runc:[2:INIT]"
)
