// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package fn

import (
	"context"
	"errors"
	"testing"
)

func TestResultUnwrap(t *testing.T) {
	v, err := Ok(42).Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("Ok(42).Unwrap() = %v, %v", v, err)
	}
}

func TestResultErr(t *testing.T) {
	r := Err[int](errors.New("boom"))
	if r.IsOk() {
		t.Fatal("expected IsErr")
	}
	if r.UnwrapOr(7) != 7 {
		t.Fatal("expected fallback value")
	}
}

func TestResultMustPanicsOnError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	Err[int](errors.New("boom")).Must()
}

func TestCollectAllOk(t *testing.T) {
	r := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	v, err := r.Unwrap()
	if err != nil || len(v) != 3 {
		t.Fatalf("Collect failed: %v %v", v, err)
	}
}

func TestCollectFirstError(t *testing.T) {
	r := Collect([]Result[int]{Ok(1), Err[int](errors.New("fail")), Ok(3)})
	if r.IsOk() {
		t.Fatal("expected error")
	}
}

func TestPipelineShortCircuits(t *testing.T) {
	called := false
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Err[int](errors.New("fail")) })
	track := Stage[int, int](func(_ context.Context, v int) Result[int] {
		called = true
		return Ok(v)
	})
	p := Pipeline(fail, track)
	r := p(context.Background(), 1)
	if r.IsOk() {
		t.Fatal("expected short-circuit")
	}
	if called {
		t.Fatal("second stage should not run")
	}
}

func TestBatchStageCollectsErrors(t *testing.T) {
	stage := Stage[int, int](func(_ context.Context, v int) Result[int] {
		if v == 2 {
			return Err[int](errors.New("bad item"))
		}
		return Ok(v * 2)
	})
	batch := BatchStage(2, stage)
	r := batch(context.Background(), []int{1, 2, 3})
	if r.IsOk() {
		t.Fatal("expected batch failure")
	}
}

func TestMapFilterReduce(t *testing.T) {
	doubled := Map([]int{1, 2, 3}, func(v int) int { return v * 2 })
	if doubled[0] != 2 || doubled[2] != 6 {
		t.Fatal("Map failed")
	}
	evens := Filter(doubled, func(v int) bool { return v%4 == 0 })
	if len(evens) != 1 || evens[0] != 4 {
		t.Fatal("Filter failed")
	}
	sum := Reduce([]int{1, 2, 3}, 0, func(acc, v int) int { return acc + v })
	if sum != 6 {
		t.Fatal("Reduce failed")
	}
}

func TestUniqueBy(t *testing.T) {
	out := UniqueBy([]string{"a", "bb", "c", "dd"}, func(s string) int { return len(s) })
	if len(out) != 2 {
		t.Fatalf("expected 2 unique lengths, got %d", len(out))
	}
}

func TestParMapPreservesOrder(t *testing.T) {
	out := ParMap([]int{1, 2, 3, 4}, 2, func(v int) int { return v * v })
	want := []int{1, 4, 9, 16}
	for i, v := range want {
		if out[i] != v {
			t.Fatalf("ParMap order mismatch at %d: got %d want %d", i, out[i], v)
		}
	}
}

func TestFanOutResultAllOk(t *testing.T) {
	r := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Ok(2) },
	)
	v, err := r.Unwrap()
	if err != nil || len(v) != 2 {
		t.Fatalf("FanOutResult failed: %v %v", v, err)
	}
}
