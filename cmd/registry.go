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
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notargets/gofvm/fields"
	"github.com/notargets/gofvm/linsolve"
	"github.com/notargets/gofvm/model_problems"
	"github.com/notargets/gofvm/models"
	"github.com/notargets/gofvm/schemes"
)

type table interface {
	Kind() string
	Keys() []string
}

func tables() []table {
	return []table{
		model_problems.Problems(),
		schemes.Ddts(),
		schemes.Grads(),
		schemes.Interpolations(),
		schemes.Limiters(),
		schemes.SnGrads(),
		schemes.Convections(),
		schemes.Laplacians(),
		linsolve.SymmetricSolvers(),
		linsolve.AsymmetricSolvers(),
		linsolve.SymmetricPreconditioners(),
		linsolve.AsymmetricPreconditioners(),
		linsolve.SymmetricSmoothers(),
		linsolve.AsymmetricSmoothers(),
		fields.PatchFields(),
		models.Drags(),
		models.HeatTransfers(),
		models.Viscosities(),
	}
}

func newRegistryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "registry [kind]",
		Aliases: []string{"list"},
		Short:   "List the names usable in an input parameters file",
		Long: `List the registered names of every kind of scheme, solver, boundary
condition, physical model and problem. A kind argument restricts the output
to the tables whose kind contains it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter string
			if len(args) == 1 {
				filter = args[0]
			}
			return listTables(cmd.OutOrStdout(), filter)
		},
	}
}

func listTables(w io.Writer, filter string) error {
	var found bool
	for _, t := range tables() {
		if filter != "" && !strings.Contains(t.Kind(), filter) {
			continue
		}
		found = true
		fmt.Fprintf(w, "%-32s %s\n", t.Kind(), strings.Join(t.Keys(), " "))
	}
	if !found {
		return fmt.Errorf("no table of kind %q", filter)
	}
	return nil
}
