// Package omni implements the wire protocol of the omni realtime assistant:
// JSON envelopes carrying a "type" discriminator, with binary media encoded as
// base64 fields.
//
// # Outbound
//
// Client events are built with the constructors in this package and encoded
// with [ClientEvent.Marshal]:
//
//	ev := omni.AudioAppend(frame, time.Now())
//	data, err := ev.Marshal()
//
// Audio payloads are never written to logs; [ClientEvent] implements
// [log/slog.LogValuer] and elides them.
//
// # Inbound
//
// [Parse] decodes one envelope into a [ServerEvent], a closed set of concrete
// event types:
//
//	ev, err := omni.Parse(msg)
//	if err != nil {
//	    // malformed: log and drop
//	}
//	switch ev := ev.(type) {
//	case *omni.AudioDelta:
//	    play(ev.Audio)
//	case *omni.ResponseDone:
//	    ...
//	}
//
// Unrecognised types decode to [*Unknown] rather than an error so that newer
// servers do not break older clients.
package omni
