package mqtt

import "fmt"

// TopicPrefix is the root of every DALI gear topic.
//
// Per-gear topics use the scheme: graylogic/dali/{gear_id}/{kind}
const TopicPrefix = "graylogic/dali"

// Topics provides builders for the gear daemon's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Forward("kitchen-downlight")
//	// Returns: "graylogic/dali/kitchen-downlight/forward"
type Topics struct{}

func (Topics) gear(gearID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, gearID, kind)
}

// Forward carries 16-bit forward frames from the bus to the gear.
//
// Payload: 4 hex digits, e.g. "FE80".
func (t Topics) Forward(gearID string) string { return t.gear(gearID, "forward") }

// Backward carries 8-bit backward frames from the gear to the bus.
//
// Payload: 2 hex digits, e.g. "FF".
func (t Topics) Backward(gearID string) string { return t.gear(gearID, "backward") }

// LampStatus carries the light source's own on/off report ("on" or "off").
func (t Topics) LampStatus(gearID string) string { return t.gear(gearID, "lamp_status") }

// BusPower carries bus power transitions ("up" or "down").
func (t Topics) BusPower(gearID string) string { return t.gear(gearID, "bus_power") }

// Lamp is the retained light output level in percent x100.
func (t Topics) Lamp(gearID string) string { return t.gear(gearID, "lamp") }

// State is the retained JSON parameter snapshot.
func (t Topics) State(gearID string) string { return t.gear(gearID, "state") }

// Event carries configuration change events.
func (t Topics) Event(gearID string) string { return t.gear(gearID, "event") }

// Health is the retained health status of a gear.
func (t Topics) Health(gearID string) string { return t.gear(gearID, "health") }

// Status is the retained online/offline status of an MQTT client.
// It doubles as the Last Will topic.
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, clientID)
}

// AllForward matches forward frames for every gear, used by bus monitors.
//
// Pattern: graylogic/dali/+/forward
func (Topics) AllForward() string {
	return TopicPrefix + "/+/forward"
}

// AllBackward matches backward frames from every gear.
//
// Pattern: graylogic/dali/+/backward
func (Topics) AllBackward() string {
	return TopicPrefix + "/+/backward"
}

// AllTopics returns a pattern matching every gear topic.
//
// Pattern: graylogic/dali/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
