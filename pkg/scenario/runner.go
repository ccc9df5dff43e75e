package scenario

import (
	"fmt"
	"os"
	"strings"

	"gcodegen/pkg/errors"
	"gcodegen/pkg/gcode"
	"gcodegen/pkg/geom"
	"gcodegen/pkg/log"
	"gcodegen/pkg/normalize"
)

// Operations understood by Run.
const (
	OpChangeLayer     = "change_layer"
	OpMoveZ           = "move_z"
	OpRetract         = "retract"
	OpUnretract       = "unretract"
	OpResetE          = "reset_e"
	OpSetAcceleration = "set_acceleration"
	OpSetExtruder     = "set_extruder"
	OpTravelTo        = "travel_to"
	OpExtrudeTo       = "extrude_to"
	OpSetFan          = "set_fan"
	OpSetShift        = "set_shift"
	OpSetWipePath     = "set_wipe_path"
	OpNewObject       = "new_object"
)

// Result is the outcome of one replay.
type Result struct {
	Output  string
	Emitter *gcode.Emitter
}

// Run replays the scenario on a fresh emitter. opts may carry metrics and
// a logger; the planners are chosen by the scenario.
func (s *Scenario) Run(opts gcode.Options) (*Result, error) {
	cfg, err := s.PrintConfig()
	if err != nil {
		return nil, err
	}

	switch s.Planner {
	case "":
	case "direct":
		opts.Planner = gcode.DirectPlannerFactory
		opts.ExternalPlanner = gcode.DirectPlanner{}
	default:
		return nil, errors.New(errors.ErrScenario, fmt.Sprintf("unknown planner %q", s.Planner)).
			SetContext("scenario", s.Name)
	}

	em, err := gcode.NewEmitter(cfg, s.LayerCount, opts)
	if err != nil {
		return nil, err
	}
	if err := em.SetExtruders(s.Extruders); err != nil {
		return nil, err
	}

	logger := log.GetLogger("scenario")
	var out strings.Builder
	for i, st := range s.Steps {
		text, err := runStep(em, i, st)
		if err != nil {
			return nil, err
		}
		if logger.Enabled(log.DEBUG) {
			logger.WithFields(log.Fields{"scenario": s.Name, "step": i, "op": st.Op}).
				Debugf("emitted %d bytes", len(text))
		}
		out.WriteString(text)
	}
	return &Result{Output: out.String(), Emitter: em}, nil
}

// runStep turns emitter state panics into step errors so one bad scenario
// does not abort a whole golden run.
func runStep(em *gcode.Emitter, i int, st Step) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ScenarioError(i, fmt.Sprint(r))
		}
	}()

	point := geom.NewPointMM(st.X, st.Y)
	switch st.Op {
	case OpChangeLayer:
		if st.Layer == nil {
			return "", errors.ScenarioError(i, "change_layer needs a layer")
		}
		return em.ChangeLayer(&gcode.StaticLayer{Index: st.Layer.ID, Z: st.Layer.Z}), nil
	case OpMoveZ:
		return em.MoveZ(st.Z, st.Comment), nil
	case OpRetract:
		return em.Retract(st.MoveZ, st.Toolchange), nil
	case OpUnretract:
		return em.Unretract(), nil
	case OpResetE:
		return em.ResetE(), nil
	case OpSetAcceleration:
		return em.SetAcceleration(st.Value), nil
	case OpSetExtruder:
		return em.SetExtruder(st.Extruder), nil
	case OpTravelTo:
		return em.TravelTo(point, st.Comment), nil
	case OpExtrudeTo:
		return em.ExtrudeTo(point, st.E, st.Feed, st.Comment), nil
	case OpSetFan:
		return em.SetFan(st.Speed), nil
	case OpSetShift:
		em.SetShift(st.X, st.Y)
		return "", nil
	case OpSetWipePath:
		pts := make([]geom.Point, len(st.Points))
		for j, p := range st.Points {
			pts[j] = geom.NewPointMM(p[0], p[1])
		}
		em.SetWipePath(geom.NewPolyline(pts...))
		return "", nil
	case OpNewObject:
		em.SetNewObject()
		return "", nil
	default:
		return "", errors.ScenarioError(i, fmt.Sprintf("unknown op %q", st.Op))
	}
}

// Normalizer builds the comparison normalizer named by the scenario.
func (s *Scenario) Normalizer() (*normalize.Normalizer, error) {
	return normalize.ForScenario(s.Name, s.Normalize)
}

// Compare normalizes output and want and returns their differences.
func (s *Scenario) Compare(want, output string) ([]normalize.Mismatch, error) {
	n, err := s.Normalizer()
	if err != nil {
		return nil, err
	}
	return normalize.Diff(n.Text(want), n.Text(output)), nil
}

// Check replays the scenario and compares it against its golden file.
func (s *Scenario) Check(opts gcode.Options) ([]normalize.Mismatch, error) {
	golden := s.GoldenPath()
	if golden == "" {
		return nil, errors.New(errors.ErrScenario, "scenario has no golden file").SetContext("scenario", s.Name)
	}
	want, err := os.ReadFile(golden)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrScenario, "failed to read golden output")
	}
	res, err := s.Run(opts)
	if err != nil {
		return nil, err
	}
	return s.Compare(string(want), res.Output)
}

// Update replays the scenario and rewrites its golden file.
func (s *Scenario) Update(opts gcode.Options) error {
	golden := s.GoldenPath()
	if golden == "" {
		return errors.New(errors.ErrScenario, "scenario has no golden file").SetContext("scenario", s.Name)
	}
	res, err := s.Run(opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(golden, []byte(res.Output), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrScenario, "failed to write golden output")
	}
	return nil
}
