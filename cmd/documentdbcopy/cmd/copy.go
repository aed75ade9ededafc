// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"errors"

	"github.com/apache/beam/sdks/v2/go/pkg/beam"
	"github.com/apache/beam/sdks/v2/go/pkg/beam/x/beamx"
	"github.com/spf13/cobra"
)

var (
	output string
	input  string

	copyCmd = &cobra.Command{
		Use:   "copy",
		Short: "Copy the documents of source collections into target collections",
		Args:  cobra.NoArgs,
		RunE:  copyE,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export the documents of source collections as JSON lines",
		Args:  cobra.NoArgs,
		RunE:  exportE,
	}

	importCmd = &cobra.Command{
		Use:   "import",
		Short: "Import JSON lines into target collections",
		Args:  cobra.NoArgs,
		RunE:  importE,
	}
)

func init() {
	exportCmd.Flags().StringVar(&output, "output", "", "file to write the documents to")
	_ = exportCmd.MarkFlagRequired("output")

	importCmd.Flags().StringVar(&input, "input", "", "file pattern of the JSON lines to import")
	_ = importCmd.MarkFlagRequired("input")
}

func copyE(cmd *cobra.Command, _ []string) error {
	if err := errors.Join(cfg.validateSource(), cfg.validateTarget()); err != nil {
		return err
	}
	p, s := beam.NewPipelineWithRoot()
	buildCopy(s, cfg)
	return beamx.Run(cmd.Context(), p)
}

func exportE(cmd *cobra.Command, _ []string) error {
	if err := cfg.validateSource(); err != nil {
		return err
	}
	p, s := beam.NewPipelineWithRoot()
	buildExport(s, cfg, output)
	return beamx.Run(cmd.Context(), p)
}

func importE(cmd *cobra.Command, _ []string) error {
	if err := cfg.validateTarget(); err != nil {
		return err
	}
	p, s := beam.NewPipelineWithRoot()
	buildImport(s, cfg, input)
	return beamx.Run(cmd.Context(), p)
}
