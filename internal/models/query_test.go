package models

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestSearchRequest_Defaults(t *testing.T) {
	req := &SearchRequest{Query: "apple"}
	if req.Paged() {
		t.Error("request without page should not be paged")
	}
	if !req.Hydrated() {
		t.Error("hydrate should default to true")
	}
	req.Hydrate = Bool(false)
	if req.Hydrated() {
		t.Error("explicit hydrate=false should disable hydration")
	}
	req.Page = 2
	if !req.Paged() {
		t.Error("page > 0 should switch to page mode")
	}
}

func TestParentKeys_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    ParentKeys
		isNil   bool
		wantErr bool
	}{
		{"absent", `{"query":"x"}`, nil, true, false},
		{"null", `{"parent_key":null}`, nil, true, false},
		{"scalar", `{"parent_key":10}`, ParentKeys{10}, false, false},
		{"numeric string", `{"parent_key":"12"}`, ParentKeys{12}, false, false},
		{"float truncated", `{"parent_key":7.9}`, ParentKeys{7}, false, false},
		{"array", `{"parent_key":[1,"2",3]}`, ParentKeys{1, 2, 3}, false, false},
		{"empty array", `{"parent_key":[]}`, ParentKeys{}, false, false},
		{"beyond float precision", `{"parent_key":[9007199254740993,9007199254740992]}`, ParentKeys{9007199254740993, 9007199254740992}, false, false},
		{"max int64", `{"parent_key":9223372036854775807}`, ParentKeys{math.MaxInt64}, false, false},
		{"out of range", `{"parent_key":1e30}`, nil, false, true},
		{"not a number", `{"parent_key":"abc"}`, nil, false, true},
		{"object", `{"parent_key":{"a":1}}`, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req SearchRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.isNil {
				if req.ParentKeys != nil {
					t.Errorf("ParentKeys = %v, want nil", req.ParentKeys)
				}
				return
			}
			if req.ParentKeys == nil {
				t.Fatal("ParentKeys should not be nil")
			}
			if len(req.ParentKeys) != len(tt.want) {
				t.Fatalf("ParentKeys = %v, want %v", req.ParentKeys, tt.want)
			}
			for i := range tt.want {
				if req.ParentKeys[i] != tt.want[i] {
					t.Errorf("ParentKeys[%d] = %d, want %d", i, req.ParentKeys[i], tt.want[i])
				}
			}
		})
	}
}

func TestSearchRequest_ParentKeysSurviveEncoding(t *testing.T) {
	tests := []struct {
		name  string
		keys  ParentKeys
		isNil bool
	}{
		{"no filter", nil, true},
		{"empty set", ParentKeys{}, false},
		{"keys", ParentKeys{4, 9007199254740993}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(&SearchRequest{Query: "apple", ParentKeys: tt.keys})
			if err != nil {
				t.Fatal(err)
			}
			var got SearchRequest
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatal(err)
			}
			if (got.ParentKeys == nil) != tt.isNil {
				t.Fatalf("%s: ParentKeys = %#v, want nil=%v", data, got.ParentKeys, tt.isNil)
			}
			if !reflect.DeepEqual([]int64(got.ParentKeys), []int64(tt.keys)) && !tt.isNil {
				t.Errorf("ParentKeys = %v, want %v", got.ParentKeys, tt.keys)
			}
		})
	}
}

func TestResults_TotalPages(t *testing.T) {
	r := &Results{Paginated: true, PerPage: 10, TotalEntries: 21}
	if got := r.TotalPages(); got != 3 {
		t.Errorf("TotalPages() = %d, want 3", got)
	}
	r.TotalEntries = 0
	if got := r.TotalPages(); got != 0 {
		t.Errorf("TotalPages() with no entries = %d, want 0", got)
	}
	if got := (&Results{PerPage: 10, TotalEntries: 5}).TotalPages(); got != 0 {
		t.Errorf("TotalPages() when not paginated = %d, want 0", got)
	}
}

func TestErrors_Unwrap(t *testing.T) {
	if !errors.Is(&ConflictError{Type: "Article", ID: 1}, ErrConflict) {
		t.Error("ConflictError should unwrap to ErrConflict")
	}
	if !errors.Is(&InvalidFilterError{Value: "x;"}, ErrInvalidFilter) {
		t.Error("InvalidFilterError should unwrap to ErrInvalidFilter")
	}
	var dangling *DanglingReferenceError
	if !errors.As(error(&DanglingReferenceError{Type: "Comment", ID: 9}), &dangling) || dangling.ID != 9 {
		t.Error("errors.As should extract DanglingReferenceError")
	}
	if !errors.Is(dangling, ErrDanglingReference) {
		t.Error("DanglingReferenceError should unwrap to ErrDanglingReference")
	}
}

func TestSameParent(t *testing.T) {
	if !SameParent(nil, nil) {
		t.Error("nil, nil should be equal")
	}
	if SameParent(Int64(1), nil) || SameParent(nil, Int64(1)) {
		t.Error("nil and set should differ")
	}
	if !SameParent(Int64(3), Int64(3)) || SameParent(Int64(3), Int64(4)) {
		t.Error("value comparison wrong")
	}
}
