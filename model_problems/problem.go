// Package model_problems holds complete cases built on the equation
// toolkit. Each problem creates its fields on the mesh of a rank and
// advances them one time step at a time; Run drives a problem serially or
// over decomposed ranks.
package model_problems

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/notargets/gofvm/InputParameters"
	"github.com/notargets/gofvm/dict"
	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/mesh"
	"github.com/notargets/gofvm/parallel"
	"github.com/notargets/gofvm/registry"
	"github.com/notargets/gofvm/schemes"
	"github.com/notargets/gofvm/sim"
	"github.com/notargets/gofvm/utils"
)

type Problem interface {
	// Setup creates the fields of the problem on the mesh of env
	Setup(env *Env) error
	Step() error
	// Fields are the solved fields, reconstructed after a decomposed run
	Fields() []*fields.VolScalarField
}

// Env is what a problem sees of its rank
type Env struct {
	Mesh *mesh.Mesh
	Case *InputParameters.CaseParameters
	Time *sim.Time
	Args schemes.Args
	Log  *zap.Logger

	nCorrectors int
}

func (env *Env) Solvers() dict.Dict { return env.Case.Solution.SubDictOrEmpty("solvers") }

func (env *Env) RelaxationFactors() dict.Dict {
	return env.Case.Solution.SubDictOrEmpty("relaxationFactors")
}

// NCorrectors is the number of coupled passes per time step, the last one
// using the Final solver controls
func (env *Env) NCorrectors() int { return max(env.nCorrectors, 1) }

var problems = registry.New[Problem, *InputParameters.CaseParameters]("problem").
	MustRegister("Laplacian", newLaplacian).
	MustRegister("ScalarTransport", newScalarTransport).
	MustRegister("PhaseExchange", newPhaseExchange)

func Problems() *registry.Registry[Problem, *InputParameters.CaseParameters] { return problems }

// Run solves the case in caseDir over cp.Parallel.NP ranks. Decomposed runs
// write to processor directories and the final fields are reconstructed
// into caseDir.
func Run(ctx context.Context, cp *InputParameters.CaseParameters, caseDir string) error {
	if _, err := problems.Create(cp.Problem, cp); err != nil {
		return err
	}
	g, err := cp.NewMesh()
	if err != nil {
		return err
	}
	np := cp.Parallel.NP
	if np <= 1 {
		_, err = runRank(ctx, cp, g, caseDir)
		return err
	}
	d, err := mesh.Decompose(g, np)
	if err != nil {
		return err
	}
	ranks := make([]Problem, np)
	var endTime float64
	err = parallel.Run(ctx, np, func(comm parallel.Comm) (err error) {
		var tm *sim.Time
		ranks[comm.Rank()], tm, err = runRankTime(ctx, cp, d.Mesh(comm), fields.CaseDir(caseDir, comm))
		if err == nil && comm.Master() {
			endTime = tm.Value()
		}
		return err
	})
	if err != nil {
		return err
	}
	return reconstruct(d, ranks, caseDir, endTime)
}

func runRank(ctx context.Context, cp *InputParameters.CaseParameters, m *mesh.Mesh, dir string) (Problem, error) {
	p, _, err := runRankTime(ctx, cp, m, dir)
	return p, err
}

func runRankTime(ctx context.Context, cp *InputParameters.CaseParameters, m *mesh.Mesh,
	dir string) (p Problem, tm *sim.Time, err error) {
	tc, err := sim.DecodeControls(cp.Time)
	if err != nil {
		return nil, nil, err
	}
	if tm, err = sim.NewTime(tc); err != nil {
		return nil, nil, err
	}
	if p, err = problems.Create(cp.Problem, cp); err != nil {
		return nil, nil, err
	}
	nCorr, err := cp.Solution.IntDefault("nCorrectors", 1)
	if err != nil {
		return nil, nil, fmt.Errorf("solution: %w", err)
	}
	env := &Env{
		Mesh: m,
		Case: cp,
		Time: tm,
		Args: schemes.Args{Mesh: m, Schemes: schemes.NewFvSchemes(cp.Schemes), Time: tm},
		Log:  utils.RankLogger(m.Comm.Rank()),

		nCorrectors: nCorr,
	}
	if err = p.Setup(env); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cp.Problem, err)
	}
	env.Log.Info("starting", zap.String("problem", cp.Problem), zap.Int("cells", m.NCells),
		zap.Int("ranks", m.Comm.Size()))
	if dir != "" {
		if err = fields.WriteRegistered(m, dir, tm.Value()); err != nil {
			return nil, nil, err
		}
	}
	if err = tm.Loop(ctx, m, dir, p.Step); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", cp.Problem, err)
	}
	for _, f := range p.Fields() {
		env.Log.Info("final", zap.String("field", f.Name), zap.Float64("min", f.Min()),
			zap.Float64("max", f.Max()), zap.Float64("average", f.WeightedAverage()))
	}
	return p, tm, nil
}

func reconstruct(d *mesh.Decomposition, ranks []Problem, caseDir string, t float64) error {
	for i := range ranks[0].Fields() {
		parts := make([]*fields.VolScalarField, len(ranks))
		for p, r := range ranks {
			parts[p] = r.Fields()[i]
		}
		f, err := fields.ReconstructVolScalarField(d, parts)
		if err != nil {
			return err
		}
		if caseDir == "" {
			continue
		}
		if err = f.Write(caseDir, t); err != nil {
			return err
		}
	}
	return nil
}
