// Package relay pushes geolocation records to live WebSocket listeners.
//
// Producers POST a record to /geoclip. Records carrying both lat and lon are
// re-serialized with their known fields and sent to every connected
// listener; listeners that fail a send are dropped. Listeners connect to the
// dedicated WebSocket address, or to /ws when the push channel shares the
// HTTP listener.
package relay
