package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesAppended counts messages written to the log by attachment kind ("none", "image", "file").
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolconnect_messages_appended_total",
		Help: "Total number of messages appended to conversations",
	}, []string{"attachment_type"})

	// AttachmentUploadFailures counts aborted sends caused by the object store.
	AttachmentUploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toolconnect_attachment_upload_failures_total",
		Help: "Total number of attachment uploads that failed",
	})

	// ConversationsCreated counts conversations created by the directory.
	ConversationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toolconnect_conversations_created_total",
		Help: "Total number of conversations created",
	})

	// ConversationCreateRaces counts inserts that lost to a concurrent insert of the same pair.
	ConversationCreateRaces = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toolconnect_conversation_create_races_total",
		Help: "Total number of conversation inserts resolved by re-fetching the existing row",
	})

	// RealtimePublishes counts publishes by channel kind and outcome.
	RealtimePublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolconnect_realtime_publishes_total",
		Help: "Total number of realtime publishes",
	}, []string{"channel", "outcome"})

	// RealtimeDrops counts realtime payloads dropped before reaching a session.
	RealtimeDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "toolconnect_realtime_drops_total",
		Help: "Total number of realtime payloads dropped",
	}, []string{"reason"})

	// DuplicateEchoes counts realtime echoes merged into an existing thread entry.
	DuplicateEchoes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "toolconnect_duplicate_echoes_total",
		Help: "Total number of realtime echoes deduplicated by message id",
	})

	// ActiveSessions is the number of open messaging sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "toolconnect_messaging_sessions_active",
		Help: "Number of active messaging WebSocket sessions",
	})
)
