package history

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/i2y/parley/provider"
)

// Key layout:
//
//	m/{len}:{conversation}/{seq uint64 big endian} → msgpack record
//	n/{len}:{conversation}                         → next seq
//
// The length prefix keeps "a" from matching "a/b". Big endian sequence
// numbers sort in append order.

type record struct {
	Message provider.Message `msgpack:"m"`
	At      time.Time        `msgpack:"at"`
}

// BadgerOptions configures a Badger store.
type BadgerOptions struct {
	// Dir holds the database files. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory. Useful for tests.
	InMemory bool

	// Logger receives badger's warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// Badger is a Store backed by BadgerDB.
type Badger struct {
	db  *badger.DB
	now func() time.Time
}

var _ Store = (*Badger)(nil)

// OpenBadger opens or creates a Badger store.
func OpenBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("history: BadgerOptions.Dir is required for on-disk mode")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	return &Badger{db: db, now: time.Now}, nil
}

func conversationKey(kind byte, conversation string) []byte {
	k := make([]byte, 0, len(conversation)+16)
	k = append(k, kind, '/')
	k = strconv.AppendInt(k, int64(len(conversation)), 10)
	k = append(k, ':')
	k = append(k, conversation...)
	return k
}

func messagePrefix(conversation string) []byte {
	return append(conversationKey('m', conversation), '/')
}

func (b *Badger) Load(_ context.Context, conversation string, limit int) ([]provider.Message, error) {
	prefix := messagePrefix(conversation)
	var msgs []provider.Message

	err := b.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.Reverse = true
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		seek := append(slices.Clone(prefix), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(msgs) >= limit {
				break
			}
			var rec record
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decoding message: %w", err)
			}
			msgs = append(msgs, rec.Message)
		}
		return nil
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	slices.Reverse(msgs)
	return window(msgs, limit), nil
}

func (b *Badger) Append(_ context.Context, conversation string, msgs ...provider.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	counter := conversationKey('n', conversation)
	prefix := messagePrefix(conversation)
	at := b.now().UTC()

	for {
		err := b.db.Update(func(txn *badger.Txn) error {
			next, err := readCounter(txn, counter)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				val, err := msgpack.Marshal(&record{Message: m, At: at})
				if err != nil {
					return fmt.Errorf("encoding message: %w", err)
				}
				key := binary.BigEndian.AppendUint64(slices.Clone(prefix), next)
				if err := txn.Set(key, val); err != nil {
					return err
				}
				next++
			}
			return txn.Set(counter, binary.BigEndian.AppendUint64(nil, next))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return b.wrap(err)
	}
}

func readCounter(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var next uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("corrupt sequence counter (%d bytes)", len(val))
		}
		next = binary.BigEndian.Uint64(val)
		return nil
	})
	return next, err
}

func (b *Badger) Clear(_ context.Context, conversation string) error {
	if err := b.db.DropPrefix(messagePrefix(conversation)); err != nil {
		return b.wrap(err)
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(conversationKey('n', conversation))
	})
	return b.wrap(err)
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func (b *Badger) wrap(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// badgerLogger forwards badger's warnings and errors to slog and drops
// its info and debug chatter.
type badgerLogger struct {
	l *slog.Logger
}

func (b badgerLogger) Errorf(f string, v ...any) {
	b.l.Error(fmt.Sprintf(f, v...), "component", "badger")
}

func (b badgerLogger) Warningf(f string, v ...any) {
	b.l.Warn(fmt.Sprintf(f, v...), "component", "badger")
}

func (badgerLogger) Infof(string, ...any)  {}
func (badgerLogger) Debugf(string, ...any) {}
