package storage

import (
	"testing"
)

func TestPointID(t *testing.T) {
	a := PointID("data/a.pdf:0:0")
	if a != PointID("data/a.pdf:0:0") {
		t.Error("point id should be deterministic")
	}
	if a == PointID("data/a.pdf:0:1") {
		t.Error("different chunk ids should give different point ids")
	}
	if len(a) != 36 {
		t.Errorf("expected a UUID string, got %q", a)
	}
}

func TestPointPayloadRoundTrip(t *testing.T) {
	in := newEntry("data/b.pdf:3:2", "data/b.pdf", 3, "some text", 0.1, 0.2)
	p := toPoint(in)
	if p.GetId().GetUuid() != PointID(in.ID) {
		t.Errorf("point id: %s", p.GetId().GetUuid())
	}
	if got := p.GetVectors().GetVector().GetData(); len(got) != 2 {
		t.Errorf("vector data: %v", got)
	}
	out := fromPayload(p.GetPayload())
	if out.ID != in.ID || out.Text != in.Text || out.Metadata != in.Metadata {
		t.Errorf("round trip: got %+v, want %+v", out, in)
	}
}
