// Copyright 2013 - 2015 Sebastian Ruml <sebastian.ruml@gmail.com>
// Copyright 2021 - 2022 Mendel Greenberg <mendel@chabad360.me>

// Package osc provides the OpenSoundControl codec and UDP plumbing used by the bridge.
//
// This implementation is based on the Open Sound Control 1.0 Specification (http://opensoundcontrol.org/spec-1_0.html).
//
// Features
//
// - Supports OSC messages with the following TypeTags:
//
//	'i' (int32)
//	'f' (float32)
//	's' (string)
//	'b' ([]byte)
//	't' (Timetag)
//	'h' (int64)
//	'd' (float64)
//	'T' (true)
//	'F' (false)
//	'N' (nil)
//
// - Supports OSC bundles, including Timetags. Bundle elements keep their order.
//
// - OSC address pattern matching ('*', '?', '[...]', '{a,b}').
//
// Packets
//
// The unit of transmission of OSC is an OSC Packet. An OSC packet is either a Message
// (an address pattern and zero or more arguments) or a Bundle (a Timetag followed by
// zero or more elements, each of which is a Message or another Bundle).
//
// DecodePacket parses one packet from the front of a buffer and returns whatever
// bytes follow it, so a reader can carry a valid remainder into its next read.
//
// Usage
//
// Client example:
//  client, _ := osc.Dial("localhost:8765")
//  client.Send(osc.NewMessage("/encoder/1", float32(0.5)))
//
// Server example:
//  d := &osc.Dispatcher{}
//  d.AddMethodFunc("/encoder/1", func(msg *osc.Message) {
//      fmt.Println(msg)
//  })
//
//  conn, _ := net.ListenPacket("udp", "127.0.0.1:8765")
//  server := &osc.Server{Dispatcher: d}
//  server.Serve(conn)
package osc
