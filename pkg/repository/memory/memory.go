package memory

import (
	"github.com/memori-lab/memoriai/pkg/domain/interfaces"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

type Memory struct {
	fragment *fragmentRepository
	reminder *reminderRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		fragment: newFragmentRepository(),
		reminder: newReminderRepository(),
	}
}

func (m *Memory) Fragment() interfaces.FragmentRepository {
	return m.fragment
}

func (m *Memory) Reminder() interfaces.ReminderRepository {
	return m.reminder
}

func (m *Memory) Close() error {
	return nil
}
