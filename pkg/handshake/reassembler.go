package handshake

import "slices"

// byteRange is a half-open interval [start, end) of the message body.
type byteRange struct {
	start int
	end   int
}

// Reassembler collects the fragments of one handshake message.
// A Reassembler is not safe for concurrent use.
type Reassembler struct {
	msgType MessageType
	body    []byte

	// missing is sorted by start and pairwise disjoint.
	missing []byteRange
}

// NewReassembler creates a reassembler for a message of the given type and
// total body length. Even a zero-length message starts with one (empty)
// missing range, so it completes when its empty fragment is contributed.
func NewReassembler(msgType MessageType, length int) *Reassembler {
	return &Reassembler{
		msgType: msgType,
		body:    make([]byte, length),
		missing: []byteRange{{start: 0, end: length}},
	}
}

// MessageType returns the type of the message being reassembled.
func (r *Reassembler) MessageType() MessageType {
	return r.msgType
}

// Length returns the total body length.
func (r *Reassembler) Length() int {
	return len(r.body)
}

// ContributeFragment merges a fragment into the body. Fragments of another
// message, or that extend past the body, are ignored.
//
// Only bytes that are still missing are copied, so when overlapping fragments
// disagree the first one received wins. Overlaps are not checked for
// consistency.
func (r *Reassembler) ContributeFragment(msgType MessageType, length int, fragment []byte, fragmentOffset int) {
	fragmentEnd := fragmentOffset + len(fragment)

	if msgType != r.msgType || length != len(r.body) || fragmentOffset < 0 || fragmentEnd > length {
		return
	}

	if len(fragment) == 0 {
		// An empty fragment only means something for an empty message.
		if fragmentOffset == 0 && len(r.missing) > 0 && r.missing[0].end == 0 {
			r.missing = r.missing[1:]
		}
		return
	}

	for i := 0; i < len(r.missing); i++ {
		rg := r.missing[i]
		if rg.start >= fragmentEnd {
			break
		}
		if rg.end <= fragmentOffset {
			continue
		}

		copyStart := max(rg.start, fragmentOffset)
		copyEnd := min(rg.end, fragmentEnd)
		copy(r.body[copyStart:copyEnd], fragment[copyStart-fragmentOffset:copyEnd-fragmentOffset])

		switch {
		case copyStart == rg.start && copyEnd == rg.end:
			r.missing = slices.Delete(r.missing, i, i+1)
			i--
		case copyStart == rg.start:
			r.missing[i].start = copyEnd
		case copyEnd == rg.end:
			r.missing[i].end = copyStart
		default:
			r.missing[i].end = copyStart
			r.missing = slices.Insert(r.missing, i+1, byteRange{start: copyEnd, end: rg.end})
			i++
		}
	}
}

// Body returns the assembled body and true once no range is missing.
// The returned slice is owned by the reassembler.
func (r *Reassembler) Body() ([]byte, bool) {
	if len(r.missing) != 0 {
		return nil, false
	}
	return r.body, true
}

// Complete reports whether every byte has been received.
func (r *Reassembler) Complete() bool {
	return len(r.missing) == 0
}

// Reset marks the whole body as missing again.
func (r *Reassembler) Reset() {
	r.missing = append(r.missing[:0], byteRange{start: 0, end: len(r.body)})
}
