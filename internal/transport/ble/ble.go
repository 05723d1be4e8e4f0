// Package ble exposes the host link as a Bluetooth LE GATT peripheral: a
// notify characteristic carries frames to the host and a write
// characteristic receives commands, one command per write.
package ble

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/banshee-data/heartstream/internal/monitoring"
	"github.com/banshee-data/heartstream/internal/transport"
)

const (
	DefaultLocalName = "ECG Monitor ESP32"

	ServiceUUID     = "fa75e591-ba7c-4779-938d-4c5bcc3a431f"
	DataCharUUID    = "3f433ab7-4887-4b25-a57a-793cd0fdb3c2" // notify
	CommandCharUUID = "221f81c7-09ed-4af7-be04-e08033dd979f" // write
)

var _ transport.Transport = (*Transport)(nil)

// Options configures the peripheral.
type Options struct {
	LocalName string
}

// Transport is a GATT peripheral implementing transport.Transport. Only
// one central is served at a time; advertising restarts after it leaves.
type Transport struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	data    bluetooth.Characteristic
	queue   *eventQueue
	logf    func(string, ...interface{})

	mu        sync.Mutex
	connected bool
	closed    bool
}

// Open enables the default adapter, registers the service and starts
// advertising.
func Open(opts Options) (*Transport, error) {
	if opts.LocalName == "" {
		opts.LocalName = DefaultLocalName
	}
	svcUUID, err := bluetooth.ParseUUID(ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}
	dataUUID, err := bluetooth.ParseUUID(DataCharUUID)
	if err != nil {
		return nil, fmt.Errorf("parse data uuid: %w", err)
	}
	cmdUUID, err := bluetooth.ParseUUID(CommandCharUUID)
	if err != nil {
		return nil, fmt.Errorf("parse command uuid: %w", err)
	}

	logf := monitoring.Tagged("ble")
	t := &Transport{
		adapter: bluetooth.DefaultAdapter,
		queue:   newEventQueue(transport.EventBuffer, logf),
		logf:    logf,
	}

	if err := t.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %w", err)
	}
	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		t.onConnection(connected)
	})

	err = t.adapter.AddService(&bluetooth.Service{
		UUID: svcUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &t.data,
				UUID:   dataUUID,
				Flags:  bluetooth.CharacteristicNotifyPermission | bluetooth.CharacteristicReadPermission,
			},
			{
				UUID:  cmdUUID,
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					t.push(transport.Event{Kind: transport.EventCommand, Command: string(value)})
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add service: %w", err)
	}

	t.adv = t.adapter.DefaultAdvertisement()
	err = t.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    opts.LocalName,
		ServiceUUIDs: []bluetooth.UUID{svcUUID},
	})
	if err != nil {
		return nil, fmt.Errorf("configure advertisement: %w", err)
	}
	if err := t.adv.Start(); err != nil {
		return nil, fmt.Errorf("start advertising: %w", err)
	}
	go t.queue.run()
	t.logf("advertising as %q", opts.LocalName)
	return t, nil
}

func (t *Transport) Events() <-chan transport.Event { return t.queue.out }

// Send notifies the subscribed central with b.
func (t *Transport) Send(b []byte) error {
	t.mu.Lock()
	closed, connected := t.closed, t.connected
	t.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}
	if !connected {
		return transport.ErrNoSubscriber
	}
	n, err := t.data.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return transport.ErrWriteFailed
	}
	return nil
}

// Close stops advertising and ends the event stream.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	t.queue.close()
	t.mu.Unlock()
	return t.adv.Stop()
}

func (t *Transport) onConnection(connected bool) {
	t.mu.Lock()
	t.connected = connected
	t.mu.Unlock()

	if connected {
		t.push(transport.Event{Kind: transport.EventConnect})
		return
	}
	t.push(transport.Event{Kind: transport.EventDisconnect})
	// re-arm advertising so the host can reconnect
	if err := t.adv.Start(); err != nil {
		t.logf("restart advertising: %v", err)
	}
}

// push hands ev to the polling loop. Callbacks run on the Bluetooth stack's
// goroutine and must not block.
func (t *Transport) push(ev transport.Event) {
	t.queue.push(ev)
}
