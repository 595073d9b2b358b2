// Package notify delivers due-event messages to chat webhook channels.
//
// The capability set is closed: mattermost (form-encoded webhook), gitter
// (JSON webhook) and debug (log sink). A channel's variant is resolved when
// the dispatcher is constructed, so a config with an unknown variant or a
// template referencing unknown fields fails at startup, not mid-dispatch.
package notify
