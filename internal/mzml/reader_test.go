package mzml

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testMzML = `<?xml version="1.0" encoding="utf-8"?>
<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
  <mzML xmlns="http://psi.hupo.org/ms/mzml" id="test" version="1.1.0">
    <run id="run1">
      <spectrumList count="3">
        <spectrum index="0" id="scan=1" defaultArrayLength="0">
          <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="1"/>
          <scanList count="1">
            <scan>
              <cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="0.5" unitCvRef="UO" unitAccession="UO:0000031" unitName="minute"/>
            </scan>
          </scanList>
        </spectrum>
        <spectrum index="1" id="scan=2" defaultArrayLength="0">
          <cvParam cvRef="MS" accession="MS:1000511" name="ms level" value="2"/>
          <scanList count="1">
            <scan>
              <cvParam cvRef="MS" accession="MS:1000016" name="scan start time" value="31.25" unitCvRef="UO" unitAccession="UO:0000010" unitName="second"/>
            </scan>
          </scanList>
        </spectrum>
        <spectrum index="2" id="scan=3" defaultArrayLength="0">
        </spectrum>
      </spectrumList>
    </run>
  </mzML>
  <indexList count="1"/>
</indexedmzML>
`

func TestRead(t *testing.T) {
	f, err := Read(strings.NewReader(testMzML))
	require.NoError(t, err)
	require.Equal(t, 3, f.NumSpecs())

	rt, err := f.RetentionTime(0)
	require.NoError(t, err)
	if rt != 30 {
		t.Errorf("RetentionTime: %f, should be 30", rt)
	}
	rt, err = f.RetentionTimeByID("scan=2")
	require.NoError(t, err)
	if rt != 31.25 {
		t.Errorf("RetentionTimeByID: %f, should be 31.25", rt)
	}
	rt, err = f.RetentionTime(2)
	require.NoError(t, err)
	if rt != -1 {
		t.Errorf("RetentionTime: %f, should be -1 without scan start time", rt)
	}
	if _, err = f.RetentionTime(3); err != ErrInvalidScanIndex {
		t.Errorf("RetentionTime: error return %v, should be ErrInvalidScanIndex", err)
	}
	if _, err = f.RetentionTimeByID("scan=4"); err != ErrInvalidScanID {
		t.Errorf("RetentionTimeByID: error return %v, should be ErrInvalidScanID", err)
	}

	for i, want := range []int{1, 2, 1} {
		msLevel, err := f.MSLevel(i)
		require.NoError(t, err)
		if msLevel != want {
			t.Errorf("MSLevel(%d): %d, should be %d", i, msLevel, want)
		}
	}
	if _, err = f.MSLevel(-1); err != ErrInvalidScanIndex {
		t.Errorf("MSLevel: error return %v, should be ErrInvalidScanIndex", err)
	}

	scanIndex, err := f.ScanIndex("scan=3")
	require.NoError(t, err)
	if scanIndex != 2 {
		t.Errorf("ScanIndex: %d, should be 2", scanIndex)
	}
	if _, err = f.ScanIndex("scan=7"); err != ErrInvalidScanID {
		t.Errorf("ScanIndex: error return %v, should be ErrInvalidScanID", err)
	}
	id, err := f.ScanID(1)
	require.NoError(t, err)
	if id != "scan=2" {
		t.Errorf("ScanID: %s, should be scan=2", id)
	}
	if _, err = f.ScanID(3); err != ErrInvalidScanIndex {
		t.Errorf("ScanID: error return %v, should be ErrInvalidScanIndex", err)
	}
}

func TestReadErrors(t *testing.T) {
	if _, err := Read(strings.NewReader(`<other/>`)); !errors.Is(err, ErrNoMzML) {
		t.Errorf("Expected ErrNoMzML, got %v", err)
	}
	bad := strings.Replace(testMzML, `index="1"`, `index="5"`, 1)
	if _, err := Read(strings.NewReader(bad)); !errors.Is(err, ErrInvalidScanIndex) {
		t.Errorf("Expected ErrInvalidScanIndex, got %v", err)
	}
	if _, err := Read(strings.NewReader(`<mzML xmlns="http://psi.hupo.org/ms/mzml"><run>`)); err == nil {
		t.Errorf("Expected error for truncated document")
	}
}
