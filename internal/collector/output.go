package collector

import (
	"sync/atomic"
	"time"

	"github.com/ernie/arkwatch/internal/domain"
)

// outputPipeline classifies completed commands and notifies listeners, one at a time
type outputPipeline struct {
	queue     chan *request
	roster    *Roster
	listeners *Registry
	errLog    ErrorLogger
	status    *atomic.Int32
}

func (o *outputPipeline) run() {
	for req := range o.queue {
		o.process(req.cmd)
		close(req.done)
	}
}

func (o *outputPipeline) process(cmd *domain.Command) {
	o.updateStatus(cmd.Status)

	if cmd.Err != nil {
		o.errLog.Errorf("Error executing %q: %v", cmd.Raw, cmd.Err)
		o.emit(domain.EventCommand, copyCommand(cmd))
		return
	}

	switch {
	case cmd.IsVerb(domain.VerbListPlayers):
		o.processPlayerList(cmd)
	case cmd.IsVerb(domain.VerbGetChat):
		o.processChat(cmd)
	case cmd.IsVerb(domain.VerbBroadcast), cmd.IsVerb(domain.VerbServerChat):
		o.emit(domain.EventChat, domain.ChatEvent{Message: cmd.Raw, FromRcon: true})
		cmd.SuppressNotify = true
	}

	o.emit(domain.EventCommand, copyCommand(cmd))
}

func (o *outputPipeline) updateStatus(status domain.ConnectionStatus) {
	prev := domain.ConnectionStatus(o.status.Swap(int32(status)))
	if prev != status {
		o.emit(domain.EventStatus, domain.StatusEvent{Status: status, Previous: prev})
	}
}

func (o *outputPipeline) processPlayerList(cmd *domain.Command) {
	changes, err := o.roster.ApplyPresence(ParsePlayerList(cmd.Lines))
	if err != nil {
		o.errLog.Errorf("Error applying player list: %v", err)
		return
	}

	cmd.Lines = changes.Messages()
	// an internal poll with no joins or leaves stays quiet
	if len(cmd.Lines) > 0 {
		cmd.SuppressNotify = false
	}

	for _, p := range changes.Joined {
		o.emit(domain.EventPlayerJoin, domain.PlayerJoinEvent{Player: p, Message: JoinMessage(p)})
	}
	for _, p := range changes.Left {
		o.emit(domain.EventPlayerLeave, domain.PlayerLeaveEvent{Player: p, Message: LeaveMessage(p)})
	}
	o.emit(domain.EventPlayers, o.roster.Snapshot())
}

func (o *outputPipeline) processChat(cmd *domain.Command) {
	var kept []string
	for _, line := range cmd.Lines {
		if line == "" || line == domain.NoResponseToken {
			continue
		}
		kept = append(kept, line)
	}
	cmd.Lines = kept

	// an empty internal poll stays quiet
	if len(kept) == 0 && cmd.SuppressNotify {
		return
	}
	cmd.SuppressNotify = false
	for _, line := range kept {
		o.emit(domain.EventChat, domain.ChatEvent{Message: line})
	}
}

func (o *outputPipeline) emit(eventType string, data interface{}) {
	o.listeners.Dispatch(domain.Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func copyCommand(cmd *domain.Command) domain.Command {
	c := *cmd
	c.Lines = append([]string(nil), cmd.Lines...)
	return c
}
