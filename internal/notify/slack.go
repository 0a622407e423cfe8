// Package notify posts operator notifications to Slack. All methods are
// no-ops when Slack is not configured, so callers never need to guard.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/roadwatch/roadwatch/internal/queue"
	"github.com/roadwatch/roadwatch/internal/utils"
)

// Notifier posts pipeline events to the operator channel.
type Notifier struct {
	client  *slack.Client
	channel string
}

// NewNotifier creates a notifier. With an empty token or channel the
// notifier is inert.
func NewNotifier(token, channel string) *Notifier {
	n := &Notifier{channel: channel}
	if token != "" && channel != "" {
		n.client = slack.New(token)
	}
	return n
}

// Enabled reports whether notifications will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.client != nil
}

// DeadLetter announces a job that exhausted its retry budget.
func (n *Notifier) DeadLetter(job queue.Job) {
	if n.client == nil {
		return
	}

	message := fmt.Sprintf(`:rotating_light: *Processing dead-lettered*

:id: *Incident:* %s
:repeat: *Attempts:* %d (over %s)
:memo: *Last error:* %s`,
		job.IncidentUUID,
		job.Attempts,
		utils.FormatDuration(job.FinishedAt.Sub(job.EnqueuedAt)),
		utils.Truncate(job.LastError, 500),
	)

	n.post(message)
}

// NeedsAttention announces an incident flagged for operator follow-up.
func (n *Notifier) NeedsAttention(incidentUUID, reason string) {
	if n.client == nil {
		return
	}

	message := fmt.Sprintf(`:warning: *Incident needs attention*

:id: *Incident:* %s
:memo: *Reason:* %s`,
		incidentUUID,
		utils.Truncate(reason, 500),
	)

	n.post(message)
}

func (n *Notifier) post(message string) {
	_, _, err := n.client.PostMessage(
		n.channel,
		slack.MsgOptionText(message, false),
	)
	if err != nil {
		log.Printf("Error posting Slack notification: %v", err)
	}
}
