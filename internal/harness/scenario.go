// Package harness builds code-flow scenarios from declarative YAML
// descriptions and runs engine queries against them. The CLI and the
// snapshot tests are its consumers; the engine itself knows nothing
// about it.
package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/tycheck/internal/ast"
	"github.com/funvibe/tycheck/internal/codeflow"
	"github.com/funvibe/tycheck/internal/config"
	"github.com/funvibe/tycheck/internal/flowgraph"
	"github.com/funvibe/tycheck/internal/symbols"
	"github.com/funvibe/tycheck/internal/token"
	"github.com/funvibe/tycheck/internal/typeeval"
	"github.com/funvibe/tycheck/internal/types"
)

// File is the YAML schema of one scenario.
type File struct {
	Name    string       `yaml:"name"`
	Classes []ClassSpec  `yaml:"classes,omitempty"`
	Symbols []SymbolSpec `yaml:"symbols,omitempty"`
	Nodes   []NodeSpec   `yaml:"nodes"`
	Queries []QuerySpec  `yaml:"queries"`
}

// ClassSpec declares a class the scenario's types refer to.
type ClassSpec struct {
	Name            string                `yaml:"name"`
	Bases           []string              `yaml:"bases,omitempty"`
	Methods         map[string]MethodSpec `yaml:"methods,omitempty"`
	Fields          map[string]string     `yaml:"fields,omitempty"`
	Optional        []string              `yaml:"optional,omitempty"`
	Abstract        bool                  `yaml:"abstract,omitempty"`
	MetaclassCall   bool                  `yaml:"metaclassCall,omitempty"`
	NotInstantiable bool                  `yaml:"notInstantiable,omitempty"`
}

// MethodSpec declares one method's signature.
type MethodSpec struct {
	Params    int    `yaml:"params,omitempty"`
	Return    string `yaml:"return,omitempty"`
	Async     bool   `yaml:"async,omitempty"`
	Generator bool   `yaml:"generator,omitempty"`
	Abstract  bool   `yaml:"abstract,omitempty"`
	Stub      bool   `yaml:"stub,omitempty"`
}

// SymbolSpec declares a scope symbol.
type SymbolSpec struct {
	Name     string `yaml:"name"`
	Declared string `yaml:"declared,omitempty"`
	Inferred string `yaml:"inferred,omitempty"`
}

// NodeSpec declares one flow node. Non-label antecedents must be
// declared earlier in the file; labels may be referenced before their
// antecedents exist (back edges).
type NodeSpec struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`

	Antecedent  string   `yaml:"antecedent,omitempty"`
	Antecedents []string `yaml:"antecedents,omitempty"`

	// assign / del / alias
	Target string `yaml:"target,omitempty"`
	Value  string `yaml:"value,omitempty"`
	Alias  string `yaml:"alias,omitempty"`

	// call
	Call string `yaml:"call,omitempty"`

	// condition
	Test     string `yaml:"test,omitempty"`
	Positive *bool  `yaml:"positive,omitempty"`
	NeverRef string `yaml:"neverRef,omitempty"`

	// branch
	Affected  []string `yaml:"affected,omitempty"`
	PreBranch string   `yaml:"preBranch,omitempty"`

	// post-context-manager branch
	Managers           []string `yaml:"managers,omitempty"`
	Async              bool     `yaml:"async,omitempty"`
	ActivateIfSwallows bool     `yaml:"activateIfSwallows,omitempty"`

	// wildcard import
	Names []string `yaml:"names,omitempty"`

	// match narrowing
	Subject   string `yaml:"subject,omitempty"`
	Narrowed  string `yaml:"narrowed,omitempty"`
	Remaining string `yaml:"remaining,omitempty"`

	// finally gates
	Gate string `yaml:"gate,omitempty"`
}

// QuerySpec is one engine query to run.
type QuerySpec struct {
	Kind string `yaml:"kind"` // typeAt | reachable | narrowTypeVar
	Node string `yaml:"node"`

	Reference       string `yaml:"reference,omitempty"`
	StartType       string `yaml:"startType,omitempty"`
	StartIncomplete bool   `yaml:"startIncomplete,omitempty"`
	SkipNoReturn    bool   `yaml:"skipNoReturn,omitempty"`
	SkipNarrowing   bool   `yaml:"skipNarrowing,omitempty"`

	Source         string `yaml:"source,omitempty"`
	IgnoreNoReturn bool   `yaml:"ignoreNoReturn,omitempty"`

	TypeVar     string   `yaml:"typeVar,omitempty"`
	Constraints []string `yaml:"constraints,omitempty"`
}

// Scenario is a built scenario, ready to run queries.
type Scenario struct {
	file    *File
	table   *symbols.Table
	eval    *typeeval.Evaluator
	engine  *codeflow.Engine
	builder *flowgraph.Builder
	nodes   map[string]flowgraph.FlowNode
	exprs   map[string]ast.Expression
	stmts   map[ast.Node]flowgraph.FlowNode
}

// Load reads and builds a scenario file.
func Load(path string, project *config.Project) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data, project)
}

// Parse builds a scenario from YAML bytes.
func Parse(data []byte, project *config.Project) (*Scenario, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	if len(file.Nodes) == 0 {
		return nil, fmt.Errorf("scenario %q has no flow nodes", file.Name)
	}

	table := symbols.NewTable()
	eval := typeeval.New(table)
	engine := codeflow.NewEngine(eval, codeflow.Options{
		MaxLoopVisits:         project.LoopVisits(),
		MaxWalkerCallsPerLoop: project.WalkerCallsPerLoop(),
	})
	eval.BindSpeculative(engine)

	s := &Scenario{
		file:    &file,
		table:   table,
		eval:    eval,
		engine:  engine,
		builder: flowgraph.NewBuilder(),
		nodes:   make(map[string]flowgraph.FlowNode),
		exprs:   make(map[string]ast.Expression),
		stmts:   make(map[ast.Node]flowgraph.FlowNode),
	}
	if err := s.build(); err != nil {
		return nil, err
	}

	// Statements in unreachable code stay untyped, the way the full
	// checker's statement pass would leave them.
	eval.SetReachabilityCheck(func(stmt ast.Node) bool {
		node, ok := s.stmts[stmt]
		if !ok {
			return true
		}
		return engine.IsFlowNodeReachable(node, nil, false)
	})
	return s, nil
}

// Engine exposes the underlying engine, mostly for tests.
func (s *Scenario) Engine() *codeflow.Engine { return s.engine }

// Evaluator exposes the underlying evaluator, mostly for tests.
func (s *Scenario) Evaluator() *typeeval.Evaluator { return s.eval }

func (s *Scenario) build() error {
	if err := s.buildClasses(); err != nil {
		return err
	}
	if err := s.buildSymbols(); err != nil {
		return err
	}
	if err := s.buildNodes(); err != nil {
		return err
	}
	return s.wireLabels()
}

func (s *Scenario) buildClasses() error {
	// Two passes so bases can appear in any order.
	for _, spec := range s.file.Classes {
		cls := s.classNamed(spec.Name)
		cls.Abstract = spec.Abstract
		cls.MetaclassCall = spec.MetaclassCall
		cls.Instantiable = !spec.NotInstantiable
	}
	for _, spec := range s.file.Classes {
		cls := s.classNamed(spec.Name)
		for _, base := range spec.Bases {
			cls.Bases = append(cls.Bases, s.classNamed(base))
		}
		for name, m := range spec.Methods {
			fn := &types.Function{
				Name:        name,
				Params:      make([]types.Param, m.Params),
				IsAsync:     m.Async,
				IsGenerator: m.Generator,
				IsAbstract:  m.Abstract,
				FromStub:    m.Stub,
			}
			if m.Return != "" {
				ret, err := s.parseType(m.Return)
				if err != nil {
					return fmt.Errorf("class %s method %s: %w", spec.Name, name, err)
				}
				fn.DeclaredReturn = ret
			}
			if cls.Methods == nil {
				cls.Methods = make(map[string]types.Type)
			}
			cls.Methods[name] = fn
		}
		if len(spec.Fields) > 0 {
			cls.Entries = make(map[string]types.StructMapEntry)
			optional := make(map[string]bool)
			for _, k := range spec.Optional {
				optional[k] = true
			}
			for key, typeSrc := range spec.Fields {
				value, err := s.parseType(typeSrc)
				if err != nil {
					return fmt.Errorf("class %s field %s: %w", spec.Name, key, err)
				}
				cls.Entries[key] = types.StructMapEntry{Value: value, Required: !optional[key]}
			}
		}
	}
	return nil
}

func (s *Scenario) buildSymbols() error {
	for _, spec := range s.file.Symbols {
		sym := s.table.Define(spec.Name)
		if spec.Declared != "" {
			t, err := s.parseType(spec.Declared)
			if err != nil {
				return fmt.Errorf("symbol %s: %w", spec.Name, err)
			}
			sym.DeclaredType = t
		}
		if spec.Inferred != "" {
			t, err := s.parseType(spec.Inferred)
			if err != nil {
				return fmt.Errorf("symbol %s: %w", spec.Name, err)
			}
			sym.InferredType = t
		}
	}
	return nil
}

func (s *Scenario) buildNodes() error {
	// Labels first so back edges can reference them.
	for _, spec := range s.file.Nodes {
		switch spec.Kind {
		case "loop":
			s.nodes[spec.ID] = s.builder.NewLoopLabel()
		case "branch":
			if len(spec.Managers) > 0 {
				managers := make([]ast.Expression, 0, len(spec.Managers))
				for _, m := range spec.Managers {
					expr, err := s.parseExpr(m)
					if err != nil {
						return err
					}
					managers = append(managers, expr)
				}
				s.nodes[spec.ID] = s.builder.NewPostContextManagerLabel(managers, spec.Async, spec.ActivateIfSwallows)
			} else {
				s.nodes[spec.ID] = s.builder.NewBranchLabel()
			}
		}
	}
	for _, spec := range s.file.Nodes {
		if spec.Kind == "loop" || spec.Kind == "branch" {
			continue
		}
		node, err := s.buildNode(&spec)
		if err != nil {
			return fmt.Errorf("node %s: %w", spec.ID, err)
		}
		s.nodes[spec.ID] = node
	}
	return nil
}

func (s *Scenario) buildNode(spec *NodeSpec) (flowgraph.FlowNode, error) {
	antecedent := func() (flowgraph.FlowNode, error) {
		if spec.Antecedent == "" {
			return nil, fmt.Errorf("kind %s needs an antecedent", spec.Kind)
		}
		n, ok := s.nodes[spec.Antecedent]
		if !ok {
			return nil, fmt.Errorf("unknown antecedent %q", spec.Antecedent)
		}
		return n, nil
	}

	switch spec.Kind {
	case "start":
		return s.builder.NewStart(), nil

	case "unreachable":
		return s.builder.NewUnreachable(), nil

	case "annotation":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		return s.builder.NewAnnotation(ant), nil

	case "assign", "del":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		target, err := s.parseExpr(spec.Target)
		if err != nil {
			return nil, err
		}
		symbolID := s.symbolIDForTarget(target)
		if spec.Kind == "del" {
			return s.builder.NewUnbind(ant, target, nil, symbolID), nil
		}
		value, err := s.parseExpr(spec.Value)
		if err != nil {
			return nil, err
		}
		stmt := &ast.AssignmentStatement{Token: token.Token{Type: token.OP, Lexeme: "="}, Target: target, Value: value}
		node := s.builder.NewAssignment(ant, target, stmt, symbolID)
		s.stmts[stmt] = node
		return node, nil

	case "alias":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		target, ok := s.table.LookupRecursive(spec.Target, false)
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q", spec.Target)
		}
		alias, ok := s.table.LookupRecursive(spec.Alias, false)
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q", spec.Alias)
		}
		return s.builder.NewAssignmentAlias(ant, target.ID, alias.ID), nil

	case "call":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		expr, err := s.parseExpr(spec.Call)
		if err != nil {
			return nil, err
		}
		call, ok := expr.(*ast.CallExpression)
		if !ok {
			if aw, isAwait := expr.(*ast.AwaitExpression); isAwait {
				call, ok = aw.Value.(*ast.CallExpression)
			}
			if !ok {
				return nil, fmt.Errorf("%q is not a call expression", spec.Call)
			}
		}
		return s.builder.NewCall(ant, call), nil

	case "condition":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		test, err := s.parseExpr(spec.Test)
		if err != nil {
			return nil, err
		}
		positive := spec.Positive == nil || *spec.Positive
		if spec.NeverRef != "" {
			ref, err := s.parseExpr(spec.NeverRef)
			if err != nil {
				return nil, err
			}
			return s.builder.NewNeverCondition(ant, test, ref, positive), nil
		}
		return s.builder.NewCondition(ant, test, nil, positive), nil

	case "wildcard":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		imp := &ast.ImportStatement{Token: token.Token{Type: token.KEYWORD, Lexeme: "import"}, Wildcard: true}
		for _, name := range spec.Names {
			sym := s.table.Define(name)
			declType := sym.InferredType
			if declType == nil {
				declType = sym.DeclaredType
			}
			sym.Declarations = append(sym.Declarations, symbols.Declaration{
				Kind: symbols.DeclWildcardImport,
				Node: imp,
				Type: declType,
			})
		}
		return s.builder.NewWildcardImport(ant, imp, spec.Names), nil

	case "exhaustedMatch":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		subject, err := s.parseExpr(spec.Subject)
		if err != nil {
			return nil, err
		}
		matchNode := &ast.Identifier{Token: token.Token{Type: token.IDENT, Lexeme: "match@" + spec.ID}, Value: "match@" + spec.ID}
		if spec.Remaining != "" {
			t, err := s.parseType(spec.Remaining)
			if err != nil {
				return nil, err
			}
			s.eval.RecordTypeForNode(matchNode, t)
		}
		return s.builder.NewExhaustedMatch(ant, subject, matchNode), nil

	case "pattern":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		subject, err := s.parseExpr(spec.Subject)
		if err != nil {
			return nil, err
		}
		patternNode := &ast.Identifier{Token: token.Token{Type: token.IDENT, Lexeme: "case@" + spec.ID}, Value: "case@" + spec.ID}
		if spec.Narrowed != "" {
			t, err := s.parseType(spec.Narrowed)
			if err != nil {
				return nil, err
			}
			s.eval.RecordTypeForNode(patternNode, t)
		}
		return s.builder.NewNarrowForPattern(ant, subject, patternNode), nil

	case "preFinally":
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		gate, post := s.builder.NewFinallyGatePair(ant, nil)
		// The paired post node is registered under "<id>.post" until a
		// postFinally spec claims it via gate reference.
		s.nodes[spec.ID+".post"] = post
		return gate, nil

	case "postFinally":
		post, ok := s.nodes[spec.Gate+".post"]
		if !ok {
			return nil, fmt.Errorf("unknown gate %q", spec.Gate)
		}
		pf := post.(*flowgraph.PostFinally)
		ant, err := antecedent()
		if err != nil {
			return nil, err
		}
		pf.Antecedent = ant
		return pf, nil
	}

	return nil, fmt.Errorf("unknown node kind %q", spec.Kind)
}

func (s *Scenario) wireLabels() error {
	for _, spec := range s.file.Nodes {
		if spec.Kind != "loop" && spec.Kind != "branch" {
			continue
		}
		label := s.nodes[spec.ID].(*flowgraph.Label)
		for _, id := range spec.Antecedents {
			ant, ok := s.nodes[id]
			if !ok {
				return fmt.Errorf("label %s: unknown antecedent %q", spec.ID, id)
			}
			label.AddAntecedent(ant)
		}
		if len(label.Antecedents) == 0 {
			return fmt.Errorf("label %s has no antecedents", spec.ID)
		}
		if spec.PreBranch != "" {
			pre, ok := s.nodes[spec.PreBranch]
			if !ok {
				return fmt.Errorf("label %s: unknown preBranch %q", spec.ID, spec.PreBranch)
			}
			label.PreBranchAntecedent = pre
		}
		if len(spec.Affected) > 0 {
			label.AffectedExpressions = make(map[string]struct{})
			for _, key := range spec.Affected {
				label.AffectedExpressions[key] = struct{}{}
			}
		}
	}
	return nil
}

func (s *Scenario) symbolIDForTarget(target ast.Expression) symbols.ID {
	ident, ok := target.(*ast.Identifier)
	if !ok {
		return symbols.NoID
	}
	sym, ok := s.table.LookupRecursive(ident.Value, false)
	if !ok {
		sym = s.table.Define(ident.Value)
	}
	return sym.ID
}
