package servicessurvey

import (
	"encoding/binary"

	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"

	"github.com/MerleBarney/encrypted-survey/lib"
)

// eventLog appends audit events to a bbolt bucket. Keys are the bucket's
// monotonically increasing sequence number, big-endian so a cursor walks
// them in emission order.
type eventLog struct {
	db     *bbolt.DB
	bucket []byte
}

func newEventLog(db *bbolt.DB, bucket []byte) *eventLog {
	return &eventLog{db: db, bucket: bucket}
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Emit persists one event, stamping it with the next sequence number. The
// registry treats sinks as fire-and-forget so a write failure is logged, not
// returned.
func (l *eventLog) Emit(ev libsurvey.Event) {
	err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(l.bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return xerrors.Errorf("allocating sequence number: %v", err)
		}
		ev.Seq = seq
		buf, err := protobuf.Encode(&ev)
		if err != nil {
			return xerrors.Errorf("encoding event: %v", err)
		}
		return b.Put(sequenceKey(seq), buf)
	})
	if err != nil {
		log.Error("could not persist event:", err)
	}
}

// Events returns the events of one survey whose global sequence number is at
// least from, in log order.
func (l *eventLog) Events(surveyID, from uint64) ([]libsurvey.Event, error) {
	var events []libsurvey.Event
	err := l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(l.bucket).Cursor()
		for k, v := c.Seek(sequenceKey(from)); k != nil; k, v = c.Next() {
			var ev libsurvey.Event
			if err := protobuf.Decode(v, &ev); err != nil {
				return xerrors.Errorf("decoding event: %v", err)
			}
			if ev.SurveyID != surveyID {
				continue
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
