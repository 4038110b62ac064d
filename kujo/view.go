package kujo

import (
	"nyiyui.ca/hato/senro/geom"
	"nyiyui.ca/hato/senro/rail"
	"nyiyui.ca/hato/senro/train"
)

// LayoutView is the geometry a renderer needs to draw a layout.
type LayoutView struct {
	Seq           uint64             `json:"seq"`
	Intersections []IntersectionView `json:"intersections"`
	Rails         []RailView         `json:"rails"`
	Stations      []StationView      `json:"stations"`
}

type IntersectionView struct {
	ID           rail.IntersectionID `json:"id"`
	Pos          geom.Vec3           `json:"pos"`
	RightForward geom.Vec3           `json:"right-forward"`
	Radius       float64             `json:"radius"`
	Right        []rail.RailID       `json:"right"`
	Left         []rail.RailID       `json:"left"`
}

type ControlView struct {
	Pos     geom.Vec3 `json:"pos"`
	Forward geom.Vec3 `json:"forward"`
}

type RailView struct {
	ID            rail.RailID            `json:"id"`
	Intersections [2]rail.IntersectionID `json:"intersections"`
	Controls      [2]ControlView         `json:"controls"`
	Points        []geom.Vec3            `json:"points"`
	Length        float64                `json:"length"`
}

type StationView struct {
	ID   rail.StationID `json:"id"`
	Name string         `json:"name"`
	Rail rail.RailID    `json:"rail"`
	T    float64        `json:"t"`
	Pos  geom.Vec3      `json:"pos"`
}

type TrainView struct {
	ID      string      `json:"id"`
	Rail    rail.RailID `json:"rail"`
	T       float64     `json:"t"`
	Pos     geom.Vec3   `json:"pos"`
	Forward geom.Vec3   `json:"forward"`
	Speed   float64     `json:"speed"`
}

func occupied(group []rail.RailID) []rail.RailID {
	res := []rail.RailID{}
	for _, r := range group {
		if r != 0 {
			res = append(res, r)
		}
	}
	return res
}

func ViewLayout(seq uint64, y *rail.Layout) LayoutView {
	v := LayoutView{
		Seq:           seq,
		Intersections: []IntersectionView{},
		Rails:         []RailView{},
		Stations:      []StationView{},
	}
	for _, id := range y.IntersectionIDs() {
		in := y.MustIntersection(id)
		v.Intersections = append(v.Intersections, IntersectionView{
			ID:           id,
			Pos:          in.Pos,
			RightForward: in.RightForward,
			Radius:       in.Collision.Radius,
			Right:        occupied(in.Right),
			Left:         occupied(in.Left),
		})
	}
	for _, id := range y.RailIDs() {
		r := y.MustRail(id)
		c := r.Spline.Controls()
		v.Rails = append(v.Rails, RailView{
			ID:            id,
			Intersections: [2]rail.IntersectionID{r.Joints[rail.JointStart].Intersection, r.Joints[rail.JointEnd].Intersection},
			Controls: [2]ControlView{
				{c[0].Pos, c[0].Forward},
				{c[1].Pos, c[1].Forward},
			},
			Points: r.Spline.CurvePoints(),
			Length: r.Spline.CurveLength(),
		})
	}
	for _, id := range y.StationIDs() {
		st, _ := y.Station(id)
		v.Stations = append(v.Stations, StationView{
			ID:   id,
			Name: st.Name,
			Rail: st.Rail,
			T:    st.T,
			Pos:  st.Pos,
		})
	}
	return v
}

// ViewTrains resolves train positions against y. Trains on rails missing from y are left out.
func ViewTrains(y *rail.Layout, trains []*train.Train) []TrainView {
	res := []TrainView{}
	for _, t := range trains {
		r, ok := y.Rail(t.Rail)
		if !ok {
			continue
		}
		res = append(res, TrainView{
			ID:      t.ID.String(),
			Rail:    t.Rail,
			T:       t.T,
			Pos:     r.Spline.Position(t.T),
			Forward: t.Forward,
			Speed:   t.Speed,
		})
	}
	return res
}
