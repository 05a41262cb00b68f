package report

import "go.uber.org/atomic"

type NotifierErrors struct {
	Publish         atomic.Uint64 `json:"publish"`
	PersistentError atomic.Uint64 `json:"persistent"`
}

type NotifierState struct {
	MessagesPublished atomic.Uint64 `json:"messages_published"`
}

type NotifierReport struct {
	State  NotifierState  `json:"state"`
	Errors NotifierErrors `json:"errors"`
}
