package train

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"
	"go.uber.org/zap"
)

// Calibration is the measured behaviour of one formation.
type Calibration struct {
	// Points are (power, speed) pairs.
	Points   [][2]float64
	Relation Relation
}

// Store keeps calibrations in a buntdb file, keyed form:<uuid>:calibration.
type Store struct {
	db *buntdb.DB
}

// OpenStore opens the store at path. ":memory:" keeps it in memory only.
func OpenStore(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open calibration store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func calibrationKey(form uuid.UUID) string {
	return fmt.Sprintf("form:%s:calibration", form)
}

// Add records points for form and refits its relation.
func (s *Store) Add(form uuid.UUID, points ...[2]float64) (Calibration, error) {
	var c Calibration
	err := s.db.Update(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(calibrationKey(form))
		switch err {
		case nil:
			if err := json.Unmarshal([]byte(raw), &c); err != nil {
				return err
			}
		case buntdb.ErrNotFound:
		default:
			return err
		}
		c.Points = append(c.Points, points...)
		c.Relation = Fit(c.Points)
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(calibrationKey(form), string(data), nil)
		return err
	})
	if err != nil {
		return Calibration{}, fmt.Errorf("add calibration for %s: %w", form, err)
	}
	return c, nil
}

func (s *Store) Get(form uuid.UUID) (Calibration, bool, error) {
	var c Calibration
	err := s.db.View(func(tx *buntdb.Tx) error {
		raw, err := tx.Get(calibrationKey(form))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &c)
	})
	if err == buntdb.ErrNotFound {
		return Calibration{}, false, nil
	}
	if err != nil {
		return Calibration{}, false, fmt.Errorf("get calibration for %s: %w", form, err)
	}
	return c, true, nil
}

// All returns every stored calibration. Malformed entries are logged and skipped.
func (s *Store) All() (map[uuid.UUID]Calibration, error) {
	res := map[uuid.UUID]Calibration{}
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys("form:*:calibration", func(key, value string) bool {
			raw := strings.TrimSuffix(strings.TrimPrefix(key, "form:"), ":calibration")
			form, err := uuid.Parse(raw)
			if err != nil {
				zap.S().Errorw("parsing key failed", "key", key, "value", value)
				return true
			}
			var c Calibration
			if err := json.Unmarshal([]byte(value), &c); err != nil {
				zap.S().Errorw("unmarshalling failed", "key", key, "value", value)
				return true
			}
			res[form] = c
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read calibrations: %w", err)
	}
	return res, nil
}

// Apply sets the relation of every stored formation on e.
func (s *Store) Apply(e *Engine) error {
	all, err := s.All()
	if err != nil {
		return err
	}
	for form, c := range all {
		e.SetRelation(form, c.Relation)
	}
	return nil
}
