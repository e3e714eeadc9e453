package bus

import (
	"log"

	"github.com/godbus/dbus/v5"

	"github.com/nfc-engine/nfcd/engine"
)

// DBusLoop is a ForeignLoop backed by a private D-Bus connection: it
// runs scheduled callbacks on its own drain goroutine (so the engine
// thread is never blocked waiting on bus I/O) and additionally emits
// each event as a D-Bus signal, the one point in this repository that
// touches the message-bus transport itself (spec.md §1's carve-out).
// Everything past "emit a signal with this path/interface/body" — the
// object model, method dispatch, introspection — is the façade's
// concern, not this package's.
type DBusLoop struct {
	conn *dbus.Conn
	path dbus.ObjectPath
	name string

	fns  chan func()
	done chan struct{}
}

// NewDBusLoop connects to the given D-Bus connection (session or
// system, caller's choice) and starts the drain goroutine. path and
// iface are the object path and interface name signals are emitted
// under; event-specific members are appended (e.g. "iface.TagDetected").
func NewDBusLoop(conn *dbus.Conn, path dbus.ObjectPath, iface string) *DBusLoop {
	l := &DBusLoop{
		conn: conn,
		path: path,
		name: iface,
		fns:  make(chan func(), 64),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *DBusLoop) run() {
	for {
		select {
		case fn := <-l.fns:
			fn()
		case <-l.done:
			return
		}
	}
}

// Schedule enqueues fn to run on the D-Bus drain goroutine.
func (l *DBusLoop) Schedule(fn func()) {
	select {
	case l.fns <- fn:
	case <-l.done:
	}
}

// Close stops the drain goroutine and closes the D-Bus connection.
func (l *DBusLoop) Close() error {
	close(l.done)
	return l.conn.Close()
}

// emitSignal sends a bus signal carrying body. Errors are logged, not
// returned — a missed signal emission must not stall the drain
// goroutine, matching the engine's own "log and continue" policy for
// degraded-but-not-fatal conditions.
func (l *DBusLoop) emitSignal(member string, body ...any) {
	if err := l.conn.Emit(l.path, l.name+"."+member, body...); err != nil {
		log.Printf("bus: emit %s failed: %v", member, err)
	}
}

// Callbacks builds a Callbacks set that emits one D-Bus signal per
// event in addition to whatever facade-side hooks the caller layers
// on top (e.g. updating its own object model before or after the
// signal goes out). Passing a zero Callbacks as extra is fine; its nil
// handlers are skipped.
func (l *DBusLoop) Callbacks(extra Callbacks) Callbacks {
	return Callbacks{
		OnModeChanged: func(mode engine.PublishedMode) {
			l.emitSignal("ModeChanged", int32(mode))
			if extra.OnModeChanged != nil {
				extra.OnModeChanged(mode)
			}
		},
		OnPollingChanged: func(polling bool) {
			l.emitSignal("PollingChanged", polling)
			if extra.OnPollingChanged != nil {
				extra.OnPollingChanged(polling)
			}
		},
		OnTagDetected: func(id int, tag Tag) {
			l.emitSignal("TagDetected", int32(id))
			if extra.OnTagDetected != nil {
				extra.OnTagDetected(id, tag)
			}
		},
		OnTagLost: func(id int) {
			l.emitSignal("TagLost", int32(id))
			if extra.OnTagLost != nil {
				extra.OnTagLost(id)
			}
		},
		OnDeviceDetected: func(id int, dev Device) {
			l.emitSignal("DeviceDetected", int32(id))
			if extra.OnDeviceDetected != nil {
				extra.OnDeviceDetected(id, dev)
			}
		},
		OnDeviceNdefReceived: func(id int, dev Device) {
			l.emitSignal("DeviceNdefReceived", int32(id))
			if extra.OnDeviceNdefReceived != nil {
				extra.OnDeviceNdefReceived(id, dev)
			}
		},
		OnDeviceLost: func(id int) {
			l.emitSignal("DeviceLost", int32(id))
			if extra.OnDeviceLost != nil {
				extra.OnDeviceLost(id)
			}
		},
	}
}
