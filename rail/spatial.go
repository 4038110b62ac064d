package rail

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/buntdb"
	"golang.org/x/exp/slices"
	"nyiyui.ca/hato/senro/geom"
)

const spatialIndexName = "intersections"

// spatialIndex keeps every intersection's collision box in an in-memory R-tree.
type spatialIndex struct {
	db *buntdb.DB
}

func newSpatialIndex() (*spatialIndex, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, err
	}
	err = db.CreateSpatialIndex(spatialIndexName, "intersection:*:box", buntdb.IndexRect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &spatialIndex{db: db}, nil
}

func (s *spatialIndex) Close() error {
	return s.db.Close()
}

func boxKey(id IntersectionID) string {
	return fmt.Sprintf("intersection:%d:box", id)
}

func parseBoxKey(key string) (IntersectionID, bool) {
	if !strings.HasPrefix(key, "intersection:") || !strings.HasSuffix(key, ":box") {
		return 0, false
	}
	raw := key[len("intersection:") : len(key)-len(":box")]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return IntersectionID(id), true
}

func (s *spatialIndex) set(id IntersectionID, sphere geom.Sphere) {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(boxKey(id), sphere.Rect(), nil)
		return err
	})
	if err != nil {
		panic(fmt.Sprintf("spatial index: set %d: %s", id, err))
	}
}

func (s *spatialIndex) delete(id IntersectionID) {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(boxKey(id))
		return err
	})
	if err != nil {
		panic(fmt.Sprintf("spatial index: delete %d: %s", id, err))
	}
}

// candidates returns the ids of every box overlapping sphere's box, sorted.
func (s *spatialIndex) candidates(sphere geom.Sphere) []IntersectionID {
	var ids []IntersectionID
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Intersects(spatialIndexName, sphere.Rect(), func(key, _ string) bool {
			if id, ok := parseBoxKey(key); ok {
				ids = append(ids, id)
			}
			return true
		})
	})
	if err != nil {
		panic(fmt.Sprintf("spatial index: query: %s", err))
	}
	slices.Sort(ids)
	return ids
}
