package renko

import (
	"math"
	"testing"
	"time"
)

var baseTime = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func feed(c *Chart, prices ...float64) (formed int) {
	for i, p := range prices {
		formed += len(c.AddPrice(p, baseTime.Add(time.Duration(i)*time.Second)))
	}
	return formed
}

func TestAddPriceSeedsWithoutBrick(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)

	bricks := c.AddPrice(1.1000, baseTime)
	if bricks != nil {
		t.Errorf("first price formed %d bricks, want 0", len(bricks))
	}
	if c.BrickCount() != 0 {
		t.Errorf("BrickCount() = %d, want 0", c.BrickCount())
	}
	if got := c.PartialBrickCompletion(); got != 0 {
		t.Errorf("PartialBrickCompletion() = %v, want 0", got)
	}
}

func TestAddPriceFormsUpBrick(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	c.AddPrice(1.1000, baseTime)

	bricks := c.AddPrice(1.1010, baseTime.Add(time.Second))
	if len(bricks) != 1 {
		t.Fatalf("formed %d bricks, want 1", len(bricks))
	}
	b := bricks[0]
	if !b.IsUp {
		t.Error("brick IsUp = false, want true")
	}
	if b.Open != 1.1000 || b.Close != 1.1010 {
		t.Errorf("brick Open/Close = %v/%v, want 1.1000/1.1010", b.Open, b.Close)
	}
	if b.High != b.Close || b.Low != b.Open {
		t.Errorf("brick High/Low = %v/%v, want %v/%v", b.High, b.Low, b.Close, b.Open)
	}
}

func TestAddPriceFormsDownBrick(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	c.AddPrice(1.1000, baseTime)

	bricks := c.AddPrice(1.0990, baseTime.Add(time.Second))
	if len(bricks) != 1 {
		t.Fatalf("formed %d bricks, want 1", len(bricks))
	}
	if bricks[0].IsUp {
		t.Error("brick IsUp = true, want false")
	}
	if math.Abs(bricks[0].Close-1.0990) > 1e-9 {
		t.Errorf("brick Close = %v, want 1.0990", bricks[0].Close)
	}
}

func TestAddPriceMultiBrickJump(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	c.AddPrice(1.1000, baseTime)

	// A 3.5 brick jump must form exactly 3 bricks, none skipped.
	bricks := c.AddPrice(1.1035, baseTime.Add(time.Second))
	if len(bricks) != 3 {
		t.Fatalf("formed %d bricks, want 3", len(bricks))
	}
	wantCloses := []float64{1.1010, 1.1020, 1.1030}
	for i, b := range bricks {
		if math.Abs(b.Close-wantCloses[i]) > 1e-9 {
			t.Errorf("brick[%d].Close = %v, want %v", i, b.Close, wantCloses[i])
		}
		if !b.IsUp {
			t.Errorf("brick[%d].IsUp = false, want true", i)
		}
	}

	// Residual half brick remains as the partial.
	if got := c.PartialBrickCompletion(); math.Abs(got-0.5) > 1e-6 {
		t.Errorf("PartialBrickCompletion() = %v, want 0.5", got)
	}
}

func TestAddPriceContiguousBricks(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	feed(c, 1.1000, 1.1023, 1.0981, 1.1015)

	bricks := c.Bricks(0)
	for i := 1; i < len(bricks); i++ {
		if math.Abs(bricks[i].Open-bricks[i-1].Close) > 1e-9 {
			t.Errorf("brick[%d].Open = %v, want %v (contiguous with previous close)",
				i, bricks[i].Open, bricks[i-1].Close)
		}
	}
}

func TestAddPriceIgnoresNonPositive(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	c.AddPrice(1.1000, baseTime)

	if bricks := c.AddPrice(0, baseTime.Add(time.Second)); bricks != nil {
		t.Errorf("zero price formed %d bricks, want 0", len(bricks))
	}
	if bricks := c.AddPrice(-1, baseTime.Add(2*time.Second)); bricks != nil {
		t.Errorf("negative price formed %d bricks, want 0", len(bricks))
	}
	if got := c.LastPrice(); got != 1.1000 {
		t.Errorf("LastPrice() = %v, want 1.1000", got)
	}
}

func TestPartialBrickCompletionBounds(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	c.AddPrice(1.1000, baseTime)

	prices := []float64{1.1003, 1.1009, 1.0994, 1.1027, 1.0960}
	for i, p := range prices {
		c.AddPrice(p, baseTime.Add(time.Duration(i+1)*time.Second))
		got := c.PartialBrickCompletion()
		if got < 0 || got > 1 {
			t.Errorf("after price %v: completion = %v, want in [0, 1]", p, got)
		}
	}
}

func TestMaxBricksEvictsOldest(t *testing.T) {
	c := NewChart("EURUSD", 1.0, 5, nil)
	c.AddPrice(100, baseTime)
	// Form 8 up bricks one at a time.
	for i := 1; i <= 8; i++ {
		c.AddPrice(100+float64(i), baseTime.Add(time.Duration(i)*time.Second))
	}

	if got := c.BrickCount(); got != 5 {
		t.Fatalf("BrickCount() = %d, want 5", got)
	}
	bricks := c.Bricks(0)
	if bricks[0].Close != 104 {
		t.Errorf("oldest kept brick Close = %v, want 104", bricks[0].Close)
	}
	if bricks[len(bricks)-1].Close != 108 {
		t.Errorf("newest brick Close = %v, want 108", bricks[len(bricks)-1].Close)
	}
}

func TestConsecutiveRuns(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	feed(c, 1.1000, 1.0990, 1.0980, 1.0970)

	if !c.HasConsecutiveDownBricks(3) {
		t.Error("HasConsecutiveDownBricks(3) = false, want true")
	}
	if c.HasConsecutiveDownBricks(4) {
		t.Error("HasConsecutiveDownBricks(4) = true, want false")
	}
	if c.HasConsecutiveUpBricks(1) {
		t.Error("HasConsecutiveUpBricks(1) = true, want false")
	}
	if got := c.ConsecutiveDownCount(); got != 3 {
		t.Errorf("ConsecutiveDownCount() = %d, want 3", got)
	}
	if got := c.ConsecutiveUpCount(); got != 0 {
		t.Errorf("ConsecutiveUpCount() = %d, want 0", got)
	}
}

func TestGreenRedGreenPattern(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	// up, down, up
	feed(c, 1.1000, 1.1010, 1.1000, 1.1010)

	if !c.HasGreenRedGreenPattern() {
		t.Error("HasGreenRedGreenPattern() = false, want true")
	}
	if c.HasRedGreenRedPattern() {
		t.Error("HasRedGreenRedPattern() = true, want false")
	}
}

func TestEntryAndStopLevels(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	feed(c, 1.1000, 1.0990, 1.0980)

	// Last close 1.0980; next up level 1.0990; buffer 2 ticks of 0.0001.
	if got, want := c.NextUpBrickLevel(), 1.0990; math.Abs(got-want) > 1e-9 {
		t.Errorf("NextUpBrickLevel() = %v, want %v", got, want)
	}
	if got, want := c.CalculateSetup1EntryPrice("buy", 2), 1.0992; math.Abs(got-want) > 1e-9 {
		t.Errorf("CalculateSetup1EntryPrice(buy, 2) = %v, want %v", got, want)
	}
	// Stop: one brick below last close, minus buffer.
	if got, want := c.CalculateStopLoss("buy", 2), 1.0968; math.Abs(got-want) > 1e-9 {
		t.Errorf("CalculateStopLoss(buy, 2) = %v, want %v", got, want)
	}
	// Setup 2 prices identically.
	if got, want := c.CalculateSetup2EntryPrice("buy", 2), c.CalculateSetup1EntryPrice("buy", 2); got != want {
		t.Errorf("CalculateSetup2EntryPrice = %v, want %v", got, want)
	}
}

func TestSetBrickSizeIgnoresNonPositive(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	c.SetBrickSize(0)
	if got := c.BrickSize(); got != 0.0010 {
		t.Errorf("BrickSize() = %v, want 0.0010 after SetBrickSize(0)", got)
	}
	c.SetBrickSize(0.0020)
	if got := c.BrickSize(); got != 0.0020 {
		t.Errorf("BrickSize() = %v, want 0.0020", got)
	}
}

func TestReset(t *testing.T) {
	c := NewChart("EURUSD", 0.0010, 0, nil)
	feed(c, 1.1000, 1.1010, 1.1025)

	c.Reset()
	if c.BrickCount() != 0 {
		t.Errorf("BrickCount() = %d after Reset, want 0", c.BrickCount())
	}
	if got := c.BrickSize(); got != 0.0010 {
		t.Errorf("BrickSize() = %v after Reset, want 0.0010", got)
	}

	// The next price reseeds without forming a brick.
	if bricks := c.AddPrice(1.2000, baseTime); bricks != nil {
		t.Errorf("price after Reset formed %d bricks, want 0", len(bricks))
	}
}
