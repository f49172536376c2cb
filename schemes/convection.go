package schemes

import (
	"fmt"

	"github.com/notargets/gofvm/registry"
)

// Convection is a parsed divSchemes entry: "[bounded] Gauss <interpolation>".
// Bounded convection subtracts Sp(div(phi)) so the operator stays bounded
// while the flux is not yet divergence free.
type Convection struct {
	Bounded bool
	Interp  Interpolation
}

// Laplacian is a parsed laplacianSchemes entry:
// "Gauss <gamma interpolation> <snGrad>"
type Laplacian struct {
	GammaInterp Interpolation
	SnGrad      SnGrad
}

var (
	convections = registry.New[*Convection, Args]("div scheme").
			MustRegister("Gauss", newGaussConvection)
	laplacians = registry.New[*Laplacian, Args]("laplacian scheme").
			MustRegister("Gauss", newGaussLaplacian)
)

func Convections() *registry.Registry[*Convection, Args] { return convections }
func Laplacians() *registry.Registry[*Laplacian, Args]   { return laplacians }

// NewConvection looks up the divergence scheme of term, e.g. div(phi,T).
// args.Flux is the convecting face flux.
func NewConvection(args Args, term string) (*Convection, error) {
	tokens, err := args.schemes().Lookup(DivSchemes, term)
	if err != nil {
		return nil, err
	}
	bounded := tokens[0] == "bounded"
	if bounded {
		if tokens = tokens[1:]; len(tokens) == 0 {
			return nil, fmt.Errorf("%s: bounded without a scheme", term)
		}
	}
	cs, err := convections.Create(tokens[0], args.with(tokens[1:]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", term, err)
	}
	cs.Bounded = bounded
	return cs, nil
}

func newGaussConvection(args Args) (*Convection, error) {
	interp, err := NewInterpolation(args, args.Tokens)
	if err != nil {
		return nil, fmt.Errorf("Gauss: %w", err)
	}
	return &Convection{Interp: interp}, nil
}

// NewLaplacian looks up the laplacian scheme of term, e.g. laplacian(DT,T)
func NewLaplacian(args Args, term string) (*Laplacian, error) {
	tokens, err := args.schemes().Lookup(LaplacianSchemes, term)
	if err != nil {
		return nil, err
	}
	ls, err := laplacians.Create(tokens[0], args.with(tokens[1:]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", term, err)
	}
	return ls, nil
}

// newGaussLaplacian splits the tokens at the first snGrad scheme name. An
// empty gamma interpolation is linear.
func newGaussLaplacian(args Args) (*Laplacian, error) {
	var (
		tokens = args.Tokens
		split  = -1
	)
	for i, tok := range tokens {
		if snGrads.Has(tok) {
			split = i
			break
		}
	}
	if split < 0 {
		return nil, fmt.Errorf("Gauss: no snGrad scheme in %q, valid schemes are %v", tokens, snGrads.Keys())
	}
	interpTokens := tokens[:split]
	if len(interpTokens) == 0 {
		interpTokens = []string{"linear"}
	}
	interp, err := NewInterpolation(args, interpTokens)
	if err != nil {
		return nil, fmt.Errorf("Gauss: %w", err)
	}
	sn, err := NewSnGrad(args, tokens[split:])
	if err != nil {
		return nil, fmt.Errorf("Gauss: %w", err)
	}
	return &Laplacian{GammaInterp: interp, SnGrad: sn}, nil
}
