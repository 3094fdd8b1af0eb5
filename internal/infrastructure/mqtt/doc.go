// Package mqtt connects the daemon to its broker.
//
// Every gear owns a subtree under graylogic/dali/{gear_id}. With the mqtt
// transport the broker stands in for the bus: an adapter publishes forward
// frames and bus power changes, the gear publishes backward frames. Lamp,
// state, event and health topics are published whatever the transport.
//
//	adapter --forward/bus_power--> broker --> daligear
//	adapter <------backward------- broker <-- daligear
//
// Presence is published retained on graylogic/dali/status/{client_id}; the
// broker's will flips it to offline if the daemon disappears.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.Publish(mqtt.Topics{}.Backward(gearID), []byte("FF"), 1, false)
//
// Enable broker TLS (mqtt.broker.tls) anywhere outside a lab bench.
package mqtt
