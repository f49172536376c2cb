/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/gofvm/InputParameters"
	"github.com/notargets/gofvm/model_problems"
	"github.com/notargets/gofvm/utils"
)

const exampleCase = `
########################################
title: Heated channel
problem: Laplacian
mesh:
  n: [20, 1, 1]
  max: [1, 0.1, 0.1]
  patches: {left: wall, right: wall, bottom: empty, top: empty, back: empty, front: empty}
time: {endTime: 1, deltaT: 1}
schemes:
  ddtSchemes: {default: steadyState}
  laplacianSchemes: {default: Gauss linear corrected}
solution:
  solvers:
    T: {solver: PCG, preconditioner: DIC, tolerance: 1.0e-8}
models: {DT: 1, source: 0}
fields:
  T:
    dimensions: [0, 0, 0, 1]
    value: 0
    boundaryField:
      left: {type: fixedValue, value: 0}
      right: {type: fixedValue, value: 1}
########################################
`

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Solve the case described by an input parameters file",
		Long: `Solve the case described by an input parameters file, writing the
fields into time directories of the case directory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.GetViper()
			input := v.GetString("inputConditionsFile")
			if input == "" {
				return fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile), like:%s", exampleCase)
			}
			cp, err := InputParameters.ReadCaseParameters(input)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("np") || cp.Parallel.NP < 1 {
				cp.Parallel.NP = v.GetInt("np")
			}
			if v.GetBool("print") {
				cp.Print(cmd.OutOrStdout())
			}
			switch v.GetString("profile") {
			case "":
			case "cpu":
				defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
			case "mem":
				defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
			default:
				return fmt.Errorf("unknown profile %q, valid are cpu, mem", v.GetString("profile"))
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runCase(ctx, cp, v.GetString("caseDir"))
		},
	}
	cmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for the case: mesh, time, schemes, solution, fields and models")
	cmd.Flags().StringP("caseDir", "C", ".", "directory the time directories are written into")
	cmd.Flags().IntP("np", "n", 1, "number of ranks, overrides parallel.np of the input file")
	cmd.Flags().BoolP("print", "p", false, "print the input parameters before solving")
	cmd.Flags().String("profile", "", "write a cpu or mem profile into the working directory")
	return cmd
}

func runCase(ctx context.Context, cp *InputParameters.CaseParameters, caseDir string) error {
	log := utils.Logger()
	log.Info("running case",
		zap.String("title", cp.Title),
		zap.String("problem", cp.Problem),
		zap.Int("np", cp.Parallel.NP),
		zap.String("caseDir", caseDir),
		zap.String("blas", utils.BLAS))
	if err := model_problems.Run(ctx, cp, caseDir); err != nil {
		return err
	}
	log.Debug("memory", zap.String("usage", utils.GetMemUsage()))
	return nil
}
