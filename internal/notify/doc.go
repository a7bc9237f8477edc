// Package notify holds the outbound message model and the concrete
// Notifier and Localizer adapters.
//
// Messages carry a [MessageKind] and positional arguments rather than
// rendered text, so the roll-in flows stay language-neutral. The built-in
// [Catalog] renders English and Ukrainian. [LogNotifier] writes messages to
// slog, [WebhookNotifier] forwards them to a chat gateway over HTTP and
// [Recorder] keeps them in memory.
package notify
