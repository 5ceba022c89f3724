package ndns

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"math/bits"
	"net"
	"sync"
	"time"
)

// DAPBloomStep is the number of independent Bloom probes per check.
const DAPBloomStep = 4

// DAPShiftDecay sets the DAP timestamp granularity: 1<<DAPShiftDecay
// seconds (256s) per tick.
const DAPShiftDecay = 8

// dapCounter is one slot of the Bloom-counter table.
type dapCounter struct {
	temp      uint16
	timestamp uint16
}

// DAP is the Bloom-counter abuse filter (§4.2). A nil *DAP always admits,
// matching "size 0 disables the filter" in the original constructor.
type DAP struct {
	mu        sync.Mutex
	counters  []dapCounter
	mask      uint32
	rnd       uint32
	threshold uint32
	timestamp uint16
}

// NewDAP returns a DAP sized to the next power of two >= size, or nil if
// size is 0 (filter disabled).
func NewDAP(size, threshold uint32) *DAP {
	if size == 0 {
		return nil
	}
	sz := nextPow2(size)
	return &DAP{
		counters:  make([]dapCounter, sz),
		mask:      sz - 1,
		rnd:       randOdd(),
		threshold: threshold,
	}
}

func nextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

func randOdd() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.LittleEndian.Uint32(b[:]) | 1
}

// Tick advances the DAP's time base; call once per received datagram. The
// salt is reseeded on the same "low 20 bits of now xor salt are zero"
// schedule as the original, which amounts to at most once every 2^20
// seconds (about 12 days).
func (d *DAP) Tick(now time.Time) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	u := uint32(now.Unix())
	if (u^d.rnd)&0xfffff == 0 {
		d.rnd = randOdd()
	}
	d.timestamp = uint16(u >> DAPShiftDecay)
}

// rolAdd implements ROLADD(h,s,x) = h = rotl32(h,s) + x.
func rolAdd(h uint32, s uint, x uint32) uint32 {
	return bits.RotateLeft32(h, int(s)) + x
}

// ipDAPKey folds a source address into a 32-bit key, one ROLADD per 32-bit
// word of the (16-byte, v4-in-v6) address.
func ipDAPKey(ip net.IP) uint32 {
	b := ip.To16()
	if b == nil {
		b = make(net.IP, 16)
	}
	var h uint32
	for i := 0; i < 4; i++ {
		word := binary.LittleEndian.Uint32(b[i*4 : i*4+4])
		h = rolAdd(h, 1, word)
	}
	return h
}

// domainDAPKey folds a lowercased domain key into a 32-bit key, using a
// different shift than ipDAPKey so the two namespaces stay independent.
func domainDAPKey(key []byte) uint32 {
	var h uint32
	for _, c := range key {
		h = rolAdd(h, 6, uint32(c))
	}
	return h
}

// CheckIP runs a Bloom-counter admission check keyed by source address.
func (d *DAP) CheckIP(ip net.IP, inctemp uint16) (mintemp uint32, admit bool) {
	return d.check(ipDAPKey(ip), inctemp)
}

// CheckDomain runs a Bloom-counter admission check keyed by (rewritten)
// qname, used for per-domain miss amplification and the first-pass
// decay-only check before resolution.
func (d *DAP) CheckDomain(key []byte, inctemp uint16) (mintemp uint32, admit bool) {
	return d.check(domainDAPKey(key), inctemp)
}

func (d *DAP) check(key uint32, inctemp uint16) (mintemp uint32, admit bool) {
	if d == nil {
		return 0, true
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	inc := uint32(inctemp)
	hash := d.rnd
	mintemp = math.MaxUint32
	var used [DAPBloomStep]uint32

	for step := 0; step < DAPBloomStep; step++ {
		var ndx uint32
		var att uint32
		for {
			att++
			hash *= key
			hash ^= hash >> 16
			hash += hash >> 7
			ndx = (hash ^ att) & d.mask
			collision := false
			for i := 0; i < step; i++ {
				if used[i] == ndx {
					collision = true
					break
				}
			}
			if !collision {
				break
			}
		}
		used[step] = ndx

		c := &d.counters[ndx]
		dt := d.timestamp - c.timestamp // modular 16-bit
		var newTemp uint32
		if dt > 15 {
			newTemp = inc
		} else {
			newTemp = uint32(c.temp>>dt) + inc
		}
		if newTemp > 0xffff {
			newTemp = 0xffff
		}
		c.temp = uint16(newTemp)
		c.timestamp = d.timestamp

		if newTemp < mintemp {
			mintemp = newTemp
		}
	}

	return mintemp, mintemp < d.threshold
}

// DAPStats is a snapshot of DAP table occupancy for the admin endpoint.
type DAPStats struct {
	Size      int
	Threshold uint32
	Occupied  int
}

// Stats returns a point-in-time occupancy snapshot, or the zero value if
// the filter is disabled.
func (d *DAP) Stats() DAPStats {
	if d == nil {
		return DAPStats{}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var occ int
	for _, c := range d.counters {
		if c.temp != 0 {
			occ++
		}
	}
	return DAPStats{Size: len(d.counters), Threshold: d.threshold, Occupied: occ}
}
