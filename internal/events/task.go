package events

// Entity types
const (
	EntityTask  = "task"
	EntityQueue = "queue"
)

// Event type constants
const (
	EventTaskAdded      = "task.added"
	EventTaskStarted    = "task.started"
	EventTaskCompleted  = "task.completed"
	EventTaskFailed     = "task.failed"
	EventQueueCompleted = "queue.completed"
)

// TaskAdded is emitted when a download task is accepted into the queue.
type TaskAdded struct {
	BaseEvent
	Title    string `json:"title"`
	Index    int    `json:"index"`
	Source   string `json:"source,omitempty"`
	FileType string `json:"file_type"`
}

// TaskStarted is emitted when a worker picks up a task.
type TaskStarted struct {
	BaseEvent
	Title  string `json:"title"`
	Worker int    `json:"worker"`
}

// TaskCompleted is emitted when a download finishes successfully.
type TaskCompleted struct {
	BaseEvent
	Title      string `json:"title"`
	OutputFile string `json:"output_file"`
	DurationMS int64  `json:"duration_ms"`
}

// TaskFailed is emitted when a download fails. The queue keeps running.
type TaskFailed struct {
	BaseEvent
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// QueueCompleted is emitted once per run when no task is pending or active.
type QueueCompleted struct {
	BaseEvent
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
