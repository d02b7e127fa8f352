package jobs

import (
	"encoding/binary"
	"fmt"

	"github.com/minio/highwayhash"
	"github.com/viant/bintly"

	"github.com/S0me0neR0man/jobstash/internal/codec"
)

const (
	// MaxEncodedSize bounds the encoding of one job.
	MaxEncodedSize = 1024

	frameTag     = 'J'
	frameVersion = 1
	frameHeader  = 2 + 8
)

var hashKey = []byte("jobstash/jobs/frame/highwayhash!")

var (
	writers = bintly.NewWriters()
	readers = bintly.NewReaders()
)

// Codec is the stored encoding of a Job:
//
//	[0]    'J'
//	[1]    version
//	[2:10] highwayhash-64 of the payload, little endian
//	[10:]  bintly payload
type Codec struct{}

var _ codec.Codec[Job] = Codec{}

func (Codec) Bound() codec.Bound {
	return codec.Bound{MaxSize: MaxEncodedSize}
}

func (Codec) Encode(j Job) ([]byte, error) {
	w := writers.Get()
	defer writers.Put(w)

	w.Uint64(j.ID)
	w.String(j.Title)
	w.String(j.Description)
	w.Uint32(uint32(len(j.SkillsRequired)))
	for _, s := range j.SkillsRequired {
		w.String(s)
	}
	w.Uint64(j.CreatedAt)

	payload := w.Bytes()
	b := make([]byte, frameHeader+len(payload))
	b[0] = frameTag
	b[1] = frameVersion
	binary.LittleEndian.PutUint64(b[2:10], highwayhash.Sum64(payload, hashKey))
	copy(b[frameHeader:], payload)
	return b, nil
}

func (Codec) Decode(b []byte) (j Job, err error) {
	if len(b) < frameHeader {
		return Job{}, fmt.Errorf("%w: job frame of %d bytes", codec.ErrCorruptEncoding, len(b))
	}
	if b[0] != frameTag {
		return Job{}, fmt.Errorf("%w: job frame tag %q", codec.ErrCorruptEncoding, b[0])
	}
	if b[1] != frameVersion {
		return Job{}, fmt.Errorf("%w: unsupported job frame version %d", codec.ErrCorruptEncoding, b[1])
	}
	payload := b[frameHeader:]
	if binary.LittleEndian.Uint64(b[2:10]) != highwayhash.Sum64(payload, hashKey) {
		return Job{}, fmt.Errorf("%w: job checksum mismatch", codec.ErrCorruptEncoding)
	}

	r := readers.Get()
	defer readers.Put(r)
	defer func() {
		if p := recover(); p != nil {
			j, err = Job{}, fmt.Errorf("%w: job payload: %v", codec.ErrCorruptEncoding, p)
		}
	}()
	if err := r.FromBytes(payload); err != nil {
		return Job{}, fmt.Errorf("%w: job payload: %v", codec.ErrCorruptEncoding, err)
	}

	r.Uint64(&j.ID)
	r.String(&j.Title)
	r.String(&j.Description)
	var n uint32
	r.Uint32(&n)
	if uint64(n) > uint64(len(payload)) {
		return Job{}, fmt.Errorf("%w: %d skills in %d bytes", codec.ErrCorruptEncoding, n, len(payload))
	}
	if n > 0 {
		j.SkillsRequired = make([]string, n)
		for i := range j.SkillsRequired {
			r.String(&j.SkillsRequired[i])
		}
	}
	r.Uint64(&j.CreatedAt)
	return j, nil
}
