package pdf

import (
	"encoding/json"
	"testing"
)

func TestPolygonToBBox(t *testing.T) {
	// Clockwise quad starting top-left, Document Intelligence style.
	polygon := []float64{1.0, 2.0, 4.0, 2.0, 4.0, 2.5, 1.0, 2.5}
	bbox, ok := polygonToBBox(polygon)
	if !ok {
		t.Fatal("polygonToBBox rejected a valid polygon")
	}
	want := BoundingBox{X: 1.0, Y: 2.0, Width: 3.0, Height: 0.5}
	if bbox != want {
		t.Errorf("bbox = %+v, want %+v", bbox, want)
	}
}

func TestPolygonToBBoxSkewed(t *testing.T) {
	// A slightly rotated line still yields its axis-aligned extent.
	polygon := []float64{1.0, 2.0, 4.0, 2.1, 4.0, 2.6, 1.0, 2.5}
	bbox, ok := polygonToBBox(polygon)
	if !ok {
		t.Fatal("rejected")
	}
	if bbox.X != 1.0 || bbox.Y != 2.0 || bbox.Width != 3.0 {
		t.Errorf("bbox = %+v", bbox)
	}
	if got := bbox.Height; got != 0.6 {
		t.Errorf("height = %v, want 0.6", got)
	}
}

func TestPolygonToBBoxInvalid(t *testing.T) {
	for _, polygon := range [][]float64{nil, {1.0}, {1.0, 2.0}, {1.0, 2.0, 3.0}} {
		if _, ok := polygonToBBox(polygon); ok {
			t.Errorf("polygon %v should be rejected", polygon)
		}
	}
}

func TestToBlocksGlobalPageNumbers(t *testing.T) {
	raw := `{
		"status": "succeeded",
		"analyzeResult": {
			"pages": [
				{
					"pageNumber": 1,
					"unit": "inch",
					"width": 8.5,
					"height": 11,
					"lines": [
						{"content": "first line", "polygon": [1, 1, 3, 1, 3, 1.2, 1, 1.2]},
						{"content": "", "polygon": [1, 2, 3, 2, 3, 2.2, 1, 2.2]}
					]
				},
				{
					"pageNumber": 2,
					"unit": "inch",
					"width": 8.5,
					"height": 11,
					"lines": [
						{"content": "second page line", "polygon": [1, 1, 3, 1, 3, 1.2, 1, 1.2]}
					]
				}
			]
		}
	}`
	var result analyzeResponse
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	e := NewAzureExtractor("https://example.cognitiveservices.azure.com", "key")
	// Chunk covering original pages 11-20: local page 1 is global page 11.
	chunk := Chunk{ID: 1, StartPage: 11, EndPage: 20}
	blocks := e.toBlocks(&result, chunk)

	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2 (empty line skipped)", len(blocks))
	}
	if blocks[0].Page != 11 {
		t.Errorf("first block page = %d, want 11", blocks[0].Page)
	}
	if blocks[1].Page != 12 {
		t.Errorf("second block page = %d, want 12", blocks[1].Page)
	}
	if blocks[0].Text != "first line" || blocks[1].Text != "second page line" {
		t.Errorf("texts = %q / %q", blocks[0].Text, blocks[1].Text)
	}
	if blocks[0].ID == blocks[1].ID || blocks[0].ID == "" {
		t.Errorf("block ids must be unique and non-empty: %q, %q", blocks[0].ID, blocks[1].ID)
	}
}
