package device

import (
	"errors"
	"log"
	"slices"
)

// Network is a network interface. Data sent is staged through memory
// for the duration of the send.
type Network struct {
	Verbose bool
	Name    string
	Mmu     Allocator

	Inbox [][]byte // Received data, oldest first.

	peers []*Network
}

// NewNetwork creates a network interface staging through mmu.
func NewNetwork(name string, mmu Allocator) *Network {
	return &Network{
		Name: name,
		Mmu:  mmu,
	}
}

// Connect makes peer a valid send destination.
func (nd *Network) Connect(peer *Network) {
	if !nd.Connected(peer) {
		nd.peers = append(nd.peers, peer)
	}
}

// Disconnect removes peer as a send destination.
func (nd *Network) Disconnect(peer *Network) {
	nd.peers = slices.DeleteFunc(nd.peers, func(p *Network) bool { return p == peer })
}

// Connected returns true if peer is a valid send destination.
func (nd *Network) Connected(peer *Network) bool {
	return slices.Contains(nd.peers, peer)
}

// Send stages data in memory, then delivers it to dest's inbox.
// The staging range is always released.
func (nd *Network) Send(data []byte, dest *Network) (err error) {
	defer func() {
		if err != nil {
			err = &ErrDevice{Device: nd.Name, Err: err}
		}
	}()

	if !nd.Connected(dest) {
		err = ErrNotConnected
		return
	}

	start, err := nd.Mmu.Allocate(len(data))
	if err != nil {
		return
	}

	defer func() {
		err = errors.Join(err, nd.Mmu.Deallocate(start, len(data)))
	}()

	err = nd.Mmu.Write(start, data)
	if err != nil {
		return
	}

	packet := make([]byte, len(data))
	err = nd.Mmu.Read(start, packet)
	if err != nil {
		return
	}

	dest.Inbox = append(dest.Inbox, packet)

	if nd.Verbose {
		log.Printf("network: %v => %v %d bytes via 0x%x", nd.Name, dest.Name, len(data), start)
	}

	return
}

// Receive pops the oldest received data.
func (nd *Network) Receive() (data []byte, ok bool) {
	if len(nd.Inbox) == 0 {
		return
	}

	data = nd.Inbox[0]
	nd.Inbox = nd.Inbox[1:]
	ok = true
	return
}
