package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"imgconv"
	"imgconv/format"
	"imgconv/internal/logger"
)

const convertExamples = `  imgconv convert input.png output.qoi
  imgconv convert input.qoi output.png
  imgconv convert --from tga sprite.tga sprite.png
  imgconv convert --format pnm input.jpeg output.pam`

func (c *cli) convertCommand() *cobra.Command {
	var to, from string

	cmd := &cobra.Command{
		Use:     "convert <infile> <outfile>",
		Short:   "Convert an image file",
		Example: convertExamples,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.convert(cmd, args[0], args[1], to, from)
		},
	}

	cmd.Flags().StringVarP(&to, "format", "f", "", "Target format, taken from the output extension when empty")
	cmd.Flags().StringVar(&from, "from", "", "Source format, sniffed from the input when empty")
	cmd.Flags().Int("quality", 0, "JPEG quality, 1 to 100")
	bindFlag(cmd.Flags().Lookup("quality"), "convert.jpeg_quality")
	cmd.Flags().String("pnm-subtype", "", "Netpbm flavour written for pnm output: pam, ppm, pgm")
	bindFlag(cmd.Flags().Lookup("pnm-subtype"), "convert.pnm_subtype")
	return cmd
}

func (c *cli) convert(cmd *cobra.Command, input, output, to, from string) error {
	log := c.log.WithFields(logger.Fields{
		logger.FieldFunction: "convert",
		"input":              input,
		"output":             output,
	})

	target := format.FromExtension(output)
	if to != "" {
		target = format.Parse(to)
	}
	if target == format.Unknown {
		return fmt.Errorf("%w: cannot tell the target format of %s", imgconv.ErrUnknownFormat, output)
	}

	source := format.Unknown
	if from != "" {
		if source = format.Parse(from); source == format.Unknown {
			return fmt.Errorf("%w: %s", imgconv.ErrUnknownFormat, from)
		}
	}

	buf, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("could not open the input image: %w", err)
	}

	converted, err := imgconv.NewConverter(c.opts...).ConvertFrom(cmd.Context(), buf, source, target)
	if err != nil {
		if errors.Is(err, imgconv.ErrUnsupportedFormat) {
			log.Warn("The target format has no encoder, see imgconv formats.")
		}
		return err
	}

	if err := os.WriteFile(output, converted, 0o644); err != nil {
		return fmt.Errorf("could not save the output image: %w", err)
	}

	log.WithField("format", target.String()).Info("Image has been converted.")
	return nil
}

func (c *cli) guessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "guess <file>",
		Short: "Print the format of an image file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			f, err := imgconv.Guess(buf)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), f)
			return nil
		},
	}
}

func (c *cli) formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the known formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FORMAT\tMIME\tDECODE\tENCODE")
			for _, f := range format.All() {
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", f, f.MIMEType(), imgconv.CanDecode(f), imgconv.CanEncode(f))
			}
			return w.Flush()
		},
	}
}
