// Package scheduler provides a block-indexed agenda of named, cancellable
// tasks and the block clock the engine reads the current height from.
package scheduler

import (
	"errors"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/payments/types"
)

var (
	ErrQueueFull     = errors.New("agenda is full for block")
	ErrNameInUse     = errors.New("task name already scheduled")
	ErrNotFound      = errors.New("task not found")
	ErrInvalidLength = errors.New("max tasks per block must be positive")
)

// TaskName identifies a scheduled task.
type TaskName = common.Hash

// Call is the operation a task dispatches when it fires.
type Call struct {
	Origin    types.AccountID `json:"origin"`
	PaymentID types.PaymentID `json:"paymentId"`
}

// Task is a scheduled call.
type Task struct {
	Name TaskName          `json:"name"`
	At   types.BlockNumber `json:"at"`
	Call Call              `json:"call"`
}

// Scheduler schedules calls at a block under a unique name.
type Scheduler interface {
	ScheduleNamed(name TaskName, at types.BlockNumber, call Call) error
	CancelNamed(name TaskName) error
	Lookup(name TaskName) (Task, bool)
	// Due returns every task due at or before now, in block order and,
	// within a block, in scheduling order. The tasks stay scheduled.
	Due(now types.BlockNumber) []Task
}

// Agenda is an in-memory Scheduler. Tasks are kept in per-block queues ordered
// by block; a secondary index maps names to their block for cancellation.
type Agenda struct {
	mu          sync.Mutex
	maxPerBlock int
	blocks      []types.BlockNumber
	queues      map[types.BlockNumber][]Task
	byName      map[TaskName]types.BlockNumber
}

// NewAgenda creates an agenda holding at most maxPerBlock tasks per block.
func NewAgenda(maxPerBlock int) (*Agenda, error) {
	if maxPerBlock <= 0 {
		return nil, ErrInvalidLength
	}
	return &Agenda{
		maxPerBlock: maxPerBlock,
		queues:      make(map[types.BlockNumber][]Task),
		byName:      make(map[TaskName]types.BlockNumber),
	}, nil
}

func (a *Agenda) ScheduleNamed(name TaskName, at types.BlockNumber, call Call) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.byName[name]; ok {
		return ErrNameInUse
	}
	queue, ok := a.queues[at]
	if len(queue) >= a.maxPerBlock {
		return ErrQueueFull
	}
	if !ok {
		i := sort.Search(len(a.blocks), func(i int) bool { return a.blocks[i] >= at })
		a.blocks = append(a.blocks, 0)
		copy(a.blocks[i+1:], a.blocks[i:])
		a.blocks[i] = at
	}
	a.queues[at] = append(queue, Task{Name: name, At: at, Call: call})
	a.byName[name] = at
	return nil
}

func (a *Agenda) CancelNamed(name TaskName) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	at, ok := a.byName[name]
	if !ok {
		return ErrNotFound
	}
	delete(a.byName, name)

	queue := a.queues[at]
	for i, task := range queue {
		if task.Name == name {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		a.dropBlock(at)
	} else {
		a.queues[at] = queue
	}
	return nil
}

func (a *Agenda) Lookup(name TaskName) (Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	at, ok := a.byName[name]
	if !ok {
		return Task{}, false
	}
	for _, task := range a.queues[at] {
		if task.Name == name {
			return task, true
		}
	}
	return Task{}, false
}

func (a *Agenda) Due(now types.BlockNumber) []Task {
	a.mu.Lock()
	defer a.mu.Unlock()

	var due []Task
	for _, at := range a.blocks {
		if at > now {
			break
		}
		due = append(due, a.queues[at]...)
	}
	return due
}

// Len returns the number of pending tasks.
func (a *Agenda) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byName)
}

func (a *Agenda) dropBlock(at types.BlockNumber) {
	delete(a.queues, at)
	i := sort.Search(len(a.blocks), func(i int) bool { return a.blocks[i] >= at })
	if i < len(a.blocks) && a.blocks[i] == at {
		a.blocks = append(a.blocks[:i], a.blocks[i+1:]...)
	}
}
