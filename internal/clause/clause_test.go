package clause

import "testing"

func TestAddAndSetBlock(t *testing.T) {
	c := New(nil, 0, nil)
	if err := c.AddBlock("more"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddBlock("more"); err == nil {
		t.Fatal("expected duplicate-block error")
	}
	if err := c.SetBlock("more", 42); err != nil {
		t.Fatal(err)
	}
	if c.GetBlock("more").CodePos != 42 {
		t.Fatalf("expected code pos 42, got %+v", c.GetBlock("more"))
	}
}

func TestFixBranchesResolvesGoto(t *testing.T) {
	c := New(nil, 2, nil)
	if err := c.AddBlock("more"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetBlock("more", 100); err != nil {
		t.Fatal(err)
	}
	c.AddGoto("more", 10, 11, 5, 3, 1)

	var gotPop, gotUnwind, gotBranch, gotTarget int
	unresolved := c.FixBranches(func(popPos, unwindCount, branchPos, targetPos int) {
		gotPop, gotUnwind, gotBranch, gotTarget = popPos, unwindCount, branchPos, targetPos
	})
	if unresolved != nil {
		t.Fatalf("expected all gotos resolved, got %+v", unresolved)
	}
	if gotPop != 10 || gotUnwind != 3 || gotBranch != 11 || gotTarget != 100 {
		t.Fatalf("unexpected patch: pop=%d unwind=%d branch=%d target=%d", gotPop, gotUnwind, gotBranch, gotTarget)
	}
}

func TestFixBranchesUnresolvedLabel(t *testing.T) {
	c := New(nil, 0, nil)
	c.AddGoto("nowhere", 0, 1, 0, 9, 9)
	g := c.FixBranches(func(int, int, int, int) {})
	if g == nil || g.Label != "nowhere" {
		t.Fatalf("expected unresolved goto for 'nowhere', got %+v", g)
	}
}
