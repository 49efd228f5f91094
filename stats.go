package dronelink

import "fmt"

// Stats is a snapshot of a session's counters.
type Stats struct {
	RecvBytes    uint64 // bytes handed to the buffer by the receiver
	DroppedBytes uint64 // bytes evicted from the buffer before the framer saw them
	Packets      uint64 // valid packets returned by Poll
	Corrupted    uint64 // delimited units discarded by the framer
	ReadErrors   uint64
}

func (st Stats) String() string {
	return fmt.Sprintf("recv: %d dropped: %d packets: %d corrupted: %d read errors: %d", st.RecvBytes, st.DroppedBytes, st.Packets, st.Corrupted, st.ReadErrors)
}
