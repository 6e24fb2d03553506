package luarule

import (
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/diagrid/internal/validate"
)

func TestNew_RequiresValidateFunction(t *testing.T) {
	if _, err := New(`x = 1`); !errors.Is(err, ErrNoValidateFunc) {
		t.Errorf("New() without validate() = %v, want ErrNoValidateFunc", err)
	}
	if _, err := New(`this is not lua`); err == nil {
		t.Error("New() with a syntax error should fail")
	}
}

func TestRule_ValidPass(t *testing.T) {
	rule, err := New(`function validate(graph) return true end`)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer rule.Close()

	res := rule.Validate(validate.Snapshot{})
	if !res.Valid {
		t.Errorf("result = %+v, want valid", res)
	}
}

func TestRule_FailWithStringDetail(t *testing.T) {
	rule, err := New(`function validate(graph) return false, "too many nodes" end`)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer rule.Close()

	res := rule.Validate(validate.Snapshot{})
	if res.Valid {
		t.Fatal("expected failure")
	}
	if !reflect.DeepEqual(res.Details, []string{"too many nodes"}) {
		t.Errorf("details = %v", res.Details)
	}
}

func TestRule_FailWithTableDetails(t *testing.T) {
	rule, err := New(`function validate(graph) return false, {"first", "second"} end`)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer rule.Close()

	res := rule.Validate(validate.Snapshot{})
	if !reflect.DeepEqual(res.Details, []string{"first", "second"}) {
		t.Errorf("details = %v, want [first second]", res.Details)
	}
}

func TestRule_SeesGraphSnapshot(t *testing.T) {
	script := `
function validate(graph)
	if #graph.nodes > 2 then
		return false, "node budget exceeded"
	end
	for _, e in ipairs(graph.edges) do
		if e.sourceId == e.targetId then
			return false, "self loop " .. e.id
		end
	end
	return true
end`
	rule, err := New(script)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer rule.Close()

	small := validate.Snapshot{
		Nodes: []validate.NodeRef{{ID: "a"}, {ID: "b"}},
		Edges: []validate.EdgeRef{{ID: "e1", SourceID: "a", TargetID: "b"}},
	}
	if res := rule.Validate(small); !res.Valid {
		t.Errorf("small graph flagged: %v", res.Details)
	}

	big := validate.Snapshot{
		Nodes: []validate.NodeRef{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	}
	if res := rule.Validate(big); res.Valid {
		t.Error("node budget rule did not fire")
	}

	loop := validate.Snapshot{
		Nodes: []validate.NodeRef{{ID: "a"}, {ID: "b"}},
		Edges: []validate.EdgeRef{{ID: "e1", SourceID: "a", TargetID: "a"}},
	}
	res := rule.Validate(loop)
	if res.Valid {
		t.Fatal("self loop rule did not fire")
	}
	if !reflect.DeepEqual(res.Details, []string{"self loop e1"}) {
		t.Errorf("details = %v", res.Details)
	}
}

func TestRule_ScriptErrorFailsRule(t *testing.T) {
	rule, err := New(`function validate(graph) error("boom") end`)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer rule.Close()

	res := rule.Validate(validate.Snapshot{})
	if res.Valid {
		t.Error("a script runtime error must fail the rule")
	}
	if len(res.Details) == 0 {
		t.Error("expected the error text as a detail")
	}
}

func TestRule_FailsClosed(t *testing.T) {
	rule, err := New(`function validate(graph) return true end`)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	rule.Close()
	rule.Close() // double close is safe

	res := rule.Validate(validate.Snapshot{})
	if res.Valid {
		t.Error("a closed rule must fail")
	}
}
