// Package export converts captures to pcap files for Wireshark.
//
// Every decoded control-plane message becomes one Ethernet/IPv4/UDP packet
// to port 4729 carrying a GSMTAP v2 header followed by the message body.
// Decode errors and records without a schema are skipped.
package export
