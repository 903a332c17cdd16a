package database

import (
	"time"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/codec/json"
	"github.com/pkg/errors"
	"github.com/usman-khan12/one-shot/internal/model"
)

type strm struct {
	db *storm.DB
}

// StormCodec is the format used to store data in the database.
var StormCodec = storm.Codec(json.Codec)

// StormInit initializes Storm database.
func StormInit(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.Init(&model.Object{}); err != nil {
		return errors.Wrap(err, "could not init object index")
	}

	if err := db.Init(&model.Tombstone{}); err != nil {
		return errors.Wrap(err, "could not init tombstone index")
	}

	err = db.Init(&model.Window{})
	return errors.Wrap(err, "could not init window index")
}

// StormReIndex rebuilds the Storm indexes.
func StormReIndex(database string) error {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return errors.Wrap(err, "could not get database connection")
	}
	defer db.Close()

	if err := db.ReIndex(&model.Object{}); err != nil {
		return errors.Wrap(err, "could not ReIndex objects")
	}

	if err := db.ReIndex(&model.Tombstone{}); err != nil {
		return errors.Wrap(err, "could not ReIndex tombstones")
	}

	err = db.ReIndex(&model.Window{})
	return errors.Wrap(err, "could not ReIndex windows")
}

// StormOpen opens a Storm database.
// Every mutation runs in a bolt read-write transaction, bolt allows only one at a time.
func StormOpen(database string) (Client, error) {
	db, err := storm.Open(database, StormCodec)
	if err != nil {
		return nil, errors.Wrap(err, "could not get database connection")
	}

	return &strm{
		db: db,
	}, nil
}

func (c *strm) Close() error {
	return c.db.Close()
}

func (c *strm) IsNotFound(err error) bool {
	return errors.Cause(err) == storm.ErrNotFound
}

//
// Object
//

func (c *strm) CreateObject(o *model.Object) error {
	tx, err := c.db.Begin(true)
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var existing model.Object
	err = tx.One("ID", o.ID, &existing)
	if err == nil {
		return ErrDuplicateID
	}
	if err != storm.ErrNotFound {
		return errors.Wrap(err, "could not check object")
	}

	if err = tx.Save(o); err != nil {
		return errors.Wrap(err, "could not save object")
	}
	return errors.Wrap(tx.Commit(), "could not commit object")
}

func (c *strm) FindObject(id string) (*model.Object, error) {
	var object model.Object
	err := c.db.One("ID", id, &object)
	if err != nil {
		return nil, errors.Wrap(err, "could not find object")
	}
	return &object, nil
}

func (c *strm) TakeObject(id string) (*model.Object, error) {
	tx, err := c.db.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var object model.Object
	if err = tx.One("ID", id, &object); err != nil {
		return nil, errors.Wrap(err, "could not find object")
	}

	if err = tx.DeleteStruct(&object); err != nil {
		return nil, errors.Wrap(err, "could not delete object")
	}

	if err = tx.Save(&model.Tombstone{ID: object.ID, ExpiresAt: object.ExpiresAt}); err != nil {
		return nil, errors.Wrap(err, "could not save tombstone")
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "could not commit object removal")
	}
	return &object, nil
}

func (c *strm) FindTombstone(id string) (*model.Tombstone, error) {
	var tombstone model.Tombstone
	err := c.db.One("ID", id, &tombstone)
	if err != nil {
		return nil, errors.Wrap(err, "could not find tombstone")
	}
	return &tombstone, nil
}

func (c *strm) SaveTombstone(t *model.Tombstone) error {
	return errors.Wrap(c.db.Save(t), "could not save tombstone")
}

func (c *strm) PendingTombstones() ([]*model.Tombstone, error) {
	tombstones := make([]*model.Tombstone, 0)
	if err := c.db.All(&tombstones); err != nil && err != storm.ErrNotFound {
		return nil, errors.Wrap(err, "could not get all tombstones")
	}

	pending := tombstones[:0]
	for _, tombstone := range tombstones {
		if !tombstone.PayloadRemoved {
			pending = append(pending, tombstone)
		}
	}
	return pending, nil
}

func (c *strm) DeleteTombstones(before time.Time) (int, error) {
	tx, err := c.db.Begin(true)
	if err != nil {
		return 0, errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	tombstones := make([]*model.Tombstone, 0)
	if err = tx.All(&tombstones); err != nil && err != storm.ErrNotFound {
		return 0, errors.Wrap(err, "could not get all tombstones")
	}

	var n int
	for _, tombstone := range tombstones {
		if !tombstone.PayloadRemoved || !tombstone.ExpiresAt.Before(before) {
			continue
		}
		if err = tx.DeleteStruct(tombstone); err != nil {
			return 0, errors.Wrap(err, "could not delete tombstone")
		}
		n++
	}

	return n, errors.Wrap(tx.Commit(), "could not commit tombstones removal")
}

func (c *strm) ExpiredObjects(now time.Time) ([]*model.Object, error) {
	objects := make([]*model.Object, 0)
	if err := c.db.All(&objects); err != nil && err != storm.ErrNotFound {
		return nil, errors.Wrap(err, "could not get all objects")
	}

	expired := objects[:0]
	for _, object := range objects {
		if object.Expired(now) {
			expired = append(expired, object)
		}
	}
	return expired, nil
}

func (c *strm) CountObjects() (int, error) {
	n, err := c.db.Count(&model.Object{})
	if err == storm.ErrNotFound {
		return 0, nil
	}
	return n, errors.Wrap(err, "could not count objects")
}

//
// Window
//

func (c *strm) HitWindow(key string, now time.Time, length time.Duration) (*model.Window, error) {
	tx, err := c.db.Begin(true)
	if err != nil {
		return nil, errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	var window model.Window
	err = tx.One("Key", key, &window)
	switch {
	case err == storm.ErrNotFound || (err == nil && window.Expired(now)):
		window = model.Window{Key: key, Count: 1, ResetAt: now.Add(length)}
	case err != nil:
		return nil, errors.Wrap(err, "could not find window")
	default:
		window.Count++
	}

	if err = tx.Save(&window); err != nil {
		return nil, errors.Wrap(err, "could not save window")
	}
	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "could not commit window")
	}
	return &window, nil
}

func (c *strm) DeleteExpiredWindows(now time.Time) (int, error) {
	tx, err := c.db.Begin(true)
	if err != nil {
		return 0, errors.Wrap(err, "could not begin transaction")
	}
	defer tx.Rollback()

	windows := make([]*model.Window, 0)
	if err = tx.All(&windows); err != nil && err != storm.ErrNotFound {
		return 0, errors.Wrap(err, "could not get all windows")
	}

	var n int
	for _, window := range windows {
		if !window.Expired(now) {
			continue
		}
		if err = tx.DeleteStruct(window); err != nil {
			return 0, errors.Wrap(err, "could not delete window")
		}
		n++
	}

	return n, errors.Wrap(tx.Commit(), "could not commit windows removal")
}
