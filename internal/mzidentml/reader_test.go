package mzidentml

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testMzID = `<?xml version="1.0" encoding="ISO-8859-1"?>
<MzIdentML id="test" version="1.1.0" xmlns="http://psidev.info/psi/pi/mzIdentML/1.1">
  <SequenceCollection>
    <Peptide id="pep_1">
      <PeptideSequence>PEPTIDE</PeptideSequence>
    </Peptide>
    <Peptide id="pep_2">
      <PeptideSequence>MSAMPLER</PeptideSequence>
      <Modification location="1" monoisotopicMassDelta="15.994915"/>
    </Peptide>
  </SequenceCollection>
  <DataCollection>
    <AnalysisData>
      <SpectrumIdentificationList id="SIL_1">
        <SpectrumIdentificationResult id="SIR_1" spectrumID="controllerType=0 controllerNumber=1 scan=12">
          <SpectrumIdentificationItem id="SII_1_1" chargeState="2" experimentalMassToCharge="400.6872" calculatedMassToCharge="400.6873" peptide_ref="pep_1" rank="1" passThreshold="true">
            <cvParam cvRef="PSI-MS" accession="MS:1002053" name="MS-GF:EValue" value="1.5E-5"/>
          </SpectrumIdentificationItem>
          <SpectrumIdentificationItem id="SII_1_2" chargeState="2" experimentalMassToCharge="400.6872" peptide_ref="pep_2" rank="2" passThreshold="false">
            <cvParam cvRef="PSI-MS" accession="MS:1002053" name="MS-GF:EValue" value="0.3"/>
          </SpectrumIdentificationItem>
          <cvParam cvRef="PSI-MS" accession="MS:1000894" name="retention time" value="123.5" unitAccession="UO:0000010"/>
          <cvParam cvRef="PSI-MS" accession="MS:1000016" name="scan start time" value="2.5" unitAccession="UO:0000031"/>
        </SpectrumIdentificationResult>
        <SpectrumIdentificationResult id="SIR_2" spectrumID="scan=20">
          <SpectrumIdentificationItem id="SII_2_1" chargeState="3" experimentalMassToCharge="302.1" peptide_ref="pep_2" rank="1">
          </SpectrumIdentificationItem>
        </SpectrumIdentificationResult>
      </SpectrumIdentificationList>
    </AnalysisData>
  </DataCollection>
</MzIdentML>
`

func TestRead(t *testing.T) {
	mzid, err := Read(strings.NewReader(testMzID))
	require.NoError(t, err)
	require.Equal(t, 3, mzid.NumIdents())

	id, err := mzid.Ident(0)
	require.NoError(t, err)
	want := Identification{
		PepSeq:        "PEPTIDE",
		PepID:         "pep_1",
		Charge:        2,
		SpecID:        "controllerType=0 controllerNumber=1 scan=12",
		RetentionTime: 150, // scan start time wins, converted from minutes
		ExpMZ:         400.6872,
		CalcMZ:        400.6873,
		Rank:          1,
		Cv: []CvParam{
			{Accession: "MS:1002053", Name: "MS-GF:EValue", Value: "1.5E-5"},
		},
	}
	if diff := cmp.Diff(want, id); diff != "" {
		t.Errorf("Ident(0) mismatch (-want +got):\n%s", diff)
	}

	id, err = mzid.Ident(1)
	require.NoError(t, err)
	if id.PepSeq != "MSAMPLER" || id.Rank != 2 || id.ModMass != 15.994915 {
		t.Errorf("Unexpected second identification %+v", id)
	}
	if id.RetentionTime != 150 {
		t.Errorf("Expected retention time of the spectrum, got %f", id.RetentionTime)
	}

	id, err = mzid.Ident(2)
	require.NoError(t, err)
	if id.RetentionTime != -1 {
		t.Errorf("Expected retention time -1 when absent, got %f", id.RetentionTime)
	}
	if id.Charge != 3 || id.SpecID != "scan=20" || len(id.Cv) != 0 {
		t.Errorf("Unexpected third identification %+v", id)
	}
}

func TestIdentIndex(t *testing.T) {
	mzid, err := Read(strings.NewReader(testMzID))
	require.NoError(t, err)
	for _, i := range []int{-1, 3} {
		if _, err := mzid.Ident(i); !errors.Is(err, ErrInvalidIdentIndex) {
			t.Errorf("Ident(%d): expected ErrInvalidIdentIndex, got %v", i, err)
		}
	}
}

func TestUnknownPeptide(t *testing.T) {
	doc := strings.Replace(testMzID, `peptide_ref="pep_1"`, `peptide_ref="pep_9"`, 1)
	mzid, err := Read(strings.NewReader(doc))
	require.NoError(t, err)
	if _, err := mzid.Ident(0); !errors.Is(err, ErrUnknownPeptide) {
		t.Errorf("Expected ErrUnknownPeptide, got %v", err)
	}
}

func TestReadInvalid(t *testing.T) {
	if _, err := Read(strings.NewReader("<MzIdentML><SequenceCollection>")); err == nil {
		t.Errorf("Expected error for truncated document")
	}
}

func TestRetentionTimeSeconds(t *testing.T) {
	rt, err := retentionTime([]CvParam{
		{Accession: "MS:1001114", Value: "10"},
		{Accession: "MS:1000894", Value: "42.5", UnitAccession: "UO:0000010"},
	})
	require.NoError(t, err)
	if rt != 42.5 {
		t.Errorf("Expected 42.5, got %f", rt)
	}
	if _, err := retentionTime([]CvParam{{Accession: "MS:1000016", Value: "abc"}}); err == nil {
		t.Errorf("Expected error for invalid retention time")
	}
}
