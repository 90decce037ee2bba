package domain

// Task is a single to-do item. ID is assigned by the caller and is not
// checked for uniqueness.
type Task struct {
	ID     string `json:"id" bson:"id"`
	Task   string `json:"task" bson:"task"`
	Status string `json:"status" bson:"status"`
}

// Container is the one persisted record holding every task.
type Container struct {
	Tasks   []Task `json:"tasks" bson:"tasks"`
	Version int64  `json:"version" bson:"version"`
}

// Page is a slice of tasks plus page-count metadata.
type Page struct {
	Tasks       []Task `json:"tasks"`
	CurrentPage int    `json:"currentPage"`
	TotalPages  int    `json:"totalPages"`
	TotalTasks  int    `json:"totalTasks"`
}

// Clone returns a deep copy so callers can mutate tasks without touching
// the stored container.
func (c *Container) Clone() *Container {
	if c == nil {
		return &Container{Tasks: []Task{}}
	}
	tasks := make([]Task, len(c.Tasks))
	copy(tasks, c.Tasks)
	return &Container{Tasks: tasks, Version: c.Version}
}

// IndexOf returns the position of the first task with the given id, or -1.
func (c *Container) IndexOf(id string) int {
	for i, t := range c.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
