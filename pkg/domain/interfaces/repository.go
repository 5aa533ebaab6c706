package interfaces

// Repository defines the interface for data persistence
type Repository interface {
	Fragment() FragmentRepository
	Reminder() ReminderRepository

	// Close releases any backend connections
	Close() error
}
