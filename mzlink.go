// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/524D/mzlink/internal/featio"
	"github.com/524D/mzlink/internal/grouping"
	"github.com/524D/mzlink/internal/idmapper"
	"github.com/524D/mzlink/internal/mzidentml"
	"github.com/524D/mzlink/internal/mzml"
	"github.com/joho/godotenv"
)

const progName = "mzLink"

var progVersion = `Unknown`

const (
	infoDefault = iota
	infoSilent
	infoVerbose
)

const defaultScoreFilter = "MS:1002257(0.0:1e-2)MS:1001330(0.0:1e-2)MS:1001159(0.0:1e-2)MS:1002466(0.99:)"

// Command line parameters
type params struct {
	outFilename   *string  // Consensus map output
	maxRT         *float64 // max RT difference (s)
	maxMZ         *float64 // max m/z difference (Da or ppm)
	mzUnit        *string
	expRT         *float64
	expMZ         *float64
	ignoreCharge  *bool
	useIdentities *bool
	mzidFilenames *string // comma separated, one per input map
	mzMLFilenames *string // comma separated, one per mzid file
	scoreFilter   *string // PSM score filter to apply
	idRT          *float64
	idPPM         *float64
	pair          *bool // Use the two-map linker
	keepSub       *bool
	partitions    *int
	debugMZ       *string // Print extractions with seed m/z in this range
	version       *bool
	verbose       *bool
	quiet         *bool

	unit      grouping.MZUnit
	mzids     []string
	mzMLs     []string
	scoreFilt idmapper.ScoreFilter
	tracer    *extractionTracer
	verbosity int      // Verbosity of progress messages (infoDefault...)
	args      []string // Input maps
	debug     bool     // Enable debug info (environment variable MZLINK_DEBUG=1)
}

// defineFlags registers all command line options on fs
func defineFlags(fs *flag.FlagSet) *params {
	var par params
	def := grouping.DefaultParams()
	idDef := idmapper.DefaultParams()

	par.outFilename = fs.String("o", "consensus.json",
		"`filename` of the consensus map. A name ending in .zst is compressed")
	par.maxRT = fs.Float64("rt", def.MaxRTDiff,
		`max retention time difference (seconds) of grouped features`)
	par.maxMZ = fs.Float64("mz", def.MaxMZDiff,
		`max m/z difference of grouped features, see -mzunit`)
	par.mzUnit = fs.String("mzunit", def.MZUnit.String(),
		"`unit` of -mz: Da or ppm")
	par.expRT = fs.Float64("exprt", def.ExponentRT,
		`exponent of the normalized retention time difference in the distance`)
	par.expMZ = fs.Float64("expmz", def.ExponentMZ,
		`exponent of the normalized m/z difference in the distance`)
	par.ignoreCharge = fs.Bool("ignorecharge", false,
		`group features with different charge states`)
	par.useIdentities = fs.Bool("ids", false,
		`don't group features that are identified as different peptides`)
	par.mzidFilenames = fs.String("mzid", "",
		"comma separated mzIdentML `filenames`"+`, one for each input map.
Features are annotated with the identified peptides before grouping.`)
	par.mzMLFilenames = fs.String("mzml", "",
		"comma separated mzML `filenames`"+`, one for each mzIdentML file.
Only needed when the mzIdentML files don't contain retention times.`)
	par.scoreFilter = fs.String("scorefilter", defaultScoreFilter,
		`filter for PSM scores to accept. Format:
<CVterm1|scorename1>([<minscore1>]:[<maxscore1>])...
When multiple score names/CV terms are specified, the first one on the list
that matches a score in the input file will be used.
The default contains reasonable values for some common search engines
and post-search scoring software:
  MS:1002257 (Comet:expectation value)
  MS:1001330 (X!Tandem:expectation value)
  MS:1001159 (SEQUEST:expectation value)
  MS:1002466 (PeptideShaker PSM score)
 `)
	par.idRT = fs.Float64("idrt", idDef.RTTolerance,
		`max retention time difference (seconds) between a feature and its identification`)
	par.idPPM = fs.Float64("idppm", idDef.MZTolerance,
		`max m/z difference (ppm) between a feature and its identification`)
	par.pair = fs.Bool("pair", false,
		`link exactly two maps`)
	par.keepSub = fs.Bool("keepsub", false,
		`when an input is a consensus map, output its members instead of
the consensus features`)
	par.partitions = fs.Int("partitions", def.NrPartitions,
		`split the input in at most this many m/z ranges that are processed in parallel`)
	par.debugMZ = fs.String("debug", "",
		"Print debug output for extractions with seed m/z in `range` e.g. 500:510")
	par.version = fs.Bool("version", false,
		`Show software version`)
	par.verbose = fs.Bool("verbose", false,
		`Print more verbose progress information`)
	par.quiet = fs.Bool("quiet", false,
		`Don't print any output except for errors`)
	return &par
}

// sanitizeParams checks the parameters and derives the values that are
// not given directly on the command line
func sanitizeParams(par *params) error {
	if *par.verbose {
		par.verbosity = infoVerbose
	}
	if *par.quiet {
		par.verbosity = infoSilent
	}
	if len(par.args) < 2 {
		return errors.New(`at least two input maps must be specified`)
	}

	var err error
	par.unit, err = grouping.ParseMZUnit(*par.mzUnit)
	if err != nil {
		return err
	}
	par.mzids = splitList(*par.mzidFilenames)
	par.mzMLs = splitList(*par.mzMLFilenames)
	if len(par.mzids) > 0 && len(par.mzids) != len(par.args) {
		return fmt.Errorf("%d mzIdentML files specified for %d input maps", len(par.mzids), len(par.args))
	}
	if len(par.mzMLs) > 0 && len(par.mzMLs) != len(par.mzids) {
		return fmt.Errorf("%d mzML files specified for %d mzIdentML files", len(par.mzMLs), len(par.mzids))
	}
	if len(par.mzids) > 0 {
		par.scoreFilt, err = idmapper.ParseScoreFilter(*par.scoreFilter)
		if err != nil {
			return err
		}
	}
	if *par.debugMZ != `` {
		par.tracer, err = newExtractionTracer(*par.debugMZ, os.Stdout)
		if err != nil {
			return fmt.Errorf("invalid debug range: %w", err)
		}
	}
	return nil
}

// splitList splits a comma separated list. Empty elements are kept,
// so that e.g. an mzML file can be omitted for one of the mzid files.
func splitList(s string) []string {
	if strings.TrimSpace(s) == `` {
		return nil
	}
	l := strings.Split(s, ",")
	for i := range l {
		l[i] = strings.TrimSpace(l[i])
	}
	return l
}

func groupingParams(par *params) grouping.Params {
	gp := grouping.DefaultParams()
	gp.MaxRTDiff = *par.maxRT
	gp.MaxMZDiff = *par.maxMZ
	gp.MZUnit = par.unit
	gp.ExponentRT = *par.expRT
	gp.ExponentMZ = *par.expMZ
	gp.IgnoreCharge = *par.ignoreCharge
	gp.UseIdentities = *par.useIdentities
	gp.KeepSubelements = *par.keepSub
	gp.NrPartitions = *par.partitions
	if par.debug {
		gp.Logger = log.New(os.Stderr, "grouping: ", log.LstdFlags|log.Lmsgprefix)
	}
	if par.tracer != nil {
		gp.OnExtract = par.tracer.trace
	}
	return gp
}

// annotate adds identities from mzIdentML file i to map m
func annotate(m *grouping.Map, i int, par *params) (idmapper.Stats, error) {
	f, err := os.Open(par.mzids[i])
	if err != nil {
		return idmapper.Stats{}, err
	}
	defer f.Close()
	mzIdentML, err := mzidentml.Read(f)
	if err != nil {
		return idmapper.Stats{}, fmt.Errorf("%s: %w", par.mzids[i], err)
	}

	var rts idmapper.RetentionTimer
	if i < len(par.mzMLs) && par.mzMLs[i] != `` {
		f, err := os.Open(par.mzMLs[i])
		if err != nil {
			return idmapper.Stats{}, err
		}
		defer f.Close()
		mzML, err := mzml.Read(f)
		if err != nil {
			return idmapper.Stats{}, fmt.Errorf("%s: %w", par.mzMLs[i], err)
		}
		rts = &mzML
	}

	idPar := idmapper.DefaultParams()
	idPar.RTTolerance = *par.idRT
	idPar.MZTolerance = *par.idPPM
	idPar.Filter = par.scoreFilt
	if par.debug {
		idPar.Logger = log.New(os.Stderr, "idmapper: ", log.LstdFlags|log.Lmsgprefix)
	}
	return idmapper.AnnotateFrom(m, &mzIdentML, rts, idPar)
}

// run reads the input maps, groups them and writes the consensus map.
// Progress is written to w.
func run(par *params, w io.Writer) error {
	timeStart := time.Now()
	maps := make([]grouping.Map, len(par.args))
	for i, fn := range par.args {
		m, err := featio.ReadMap(fn)
		if err != nil {
			return err
		}
		maps[i] = m
		if par.verbosity == infoVerbose {
			fmt.Fprintf(w, "Read %d elements from %s\n", len(m.Elements), fn)
		}
	}
	for i := range par.mzids {
		st, err := annotate(&maps[i], i, par)
		if err != nil {
			return err
		}
		if par.verbosity == infoVerbose {
			fmt.Fprintf(w, "%s: %d of %d identifications accepted, %d elements annotated (%d ambiguous)\n",
				par.mzids[i], st.Accepted, st.Idents, st.Annotated, st.Ambiguous)
		}
	}
	timeRead := time.Now()

	gp := groupingParams(par)
	var cm grouping.ConsensusMap
	var err error
	if *par.pair {
		cm, err = grouping.Link(maps, gp)
	} else {
		cm, err = grouping.Group(maps, gp)
	}
	if err != nil {
		return err
	}
	timeGrouped := time.Now()

	if err := featio.WriteConsensusMap(*par.outFilename, cm); err != nil {
		return err
	}

	if par.verbosity != infoSilent {
		grouped := 0
		for _, cf := range cm.Features {
			if len(cf.Members) > 1 {
				grouped++
			}
		}
		fmt.Fprintf(w, "%d consensus features (%d with more than one member) written to %s\n",
			len(cm.Features), grouped, *par.outFilename)
	}
	if par.verbosity == infoVerbose {
		fmt.Fprintf(w, "Reading: %v, grouping: %v, writing: %v\n",
			timeRead.Sub(timeStart), timeGrouped.Sub(timeRead), time.Since(timeGrouped))
	}
	if par.tracer != nil {
		par.tracer.summary()
	}
	return nil
}

func usage() {
	exeName := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr,
		`USAGE:
  %s [options] <map1> <map2> [<map3>...]

  This program finds corresponding features in two or more LC-MS runs
  and writes them as consensus features. Input maps are JSON files
  with feature lists, or consensus maps written by an earlier run.

OPTIONS:
`, exeName)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr,
		`
ENVIRONMENT VARIABLES:
    When environment variable MZLINK_DEBUG=1, progress of the grouping of each
    m/z partition is logged. Environment variables can also be set in a .env
    file in the current directory.

USAGE EXAMPLES:
  %s run1.json run2.json run3.json
    Group the features of 3 runs using default parameters, and write the
    result to consensus.json.

  %s -mz 10 -mzunit ppm -rt 60 -o groups.json.zst run1.json run2.json
    Idem, but allow 10 ppm m/z difference and 60 s retention time difference,
    and write compressed output.

  %s -ids -mzid run1.mzid,run2.mzid run1.json run2.json
    Annotate features with the peptides identified in the mzIdentML files,
    and don't group features that are identified as different peptides.
`, exeName, exeName, exeName)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	// A missing .env file is fine
	_ = godotenv.Load()

	par := defineFlags(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()
	if *par.version {
		if progVersion == `Unknown` {
			progVersion = `Unknown
Build this program with -ldflags "-X main.progVersion=<version>" to show the version here.`
		}
		fmt.Fprintf(os.Stderr, "%s version %s\n", progName, progVersion)
		return
	}
	par.args = flag.Args()
	// Check if debug output should be enabled
	par.debug = os.Getenv("MZLINK_DEBUG") == `1`

	if err := sanitizeParams(par); err != nil {
		fmt.Fprintf(os.Stderr, `%v
Type %s --help for usage
`, err, filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	if err := run(par, os.Stderr); err != nil {
		log.Fatalf("%v", err)
	}
}
