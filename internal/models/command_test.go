package models

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Command
		ok   bool
	}{
		{"exact", "relax-right-arm", CommandRelaxRightArm, true},
		{"padded upper", "  SAVE-POSE ", CommandSavePose, true},
		{"underscores", "execute_action", CommandExecuteAction, true},
		{"unknown", "dance", CommandUnrecognized, false},
		{"empty", "", CommandUnrecognized, false},
		{"literal unrecognized", "unrecognized", CommandUnrecognized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseCommand(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestVocabularyIsComplete(t *testing.T) {
	if len(Commands) != 22 {
		t.Fatalf("expected 22 recognized commands, got %d", len(Commands))
	}
	for _, c := range Commands {
		if got, ok := ParseCommand(string(c)); !ok || got != c {
			t.Errorf("ParseCommand(%q) did not round trip", c)
		}
	}
}

func TestFreezeAndGripperTargets(t *testing.T) {
	limb, mode, ok := CommandFreezeLeftArm.FreezeTarget()
	if !ok || limb != LimbLeftArm || mode != FreezeStateFrozen {
		t.Fatalf("unexpected freeze target: %q %q %v", limb, mode, ok)
	}
	limb, mode, ok = CommandRelaxHead.FreezeTarget()
	if !ok || limb != LimbHead || mode != FreezeStateRelaxed {
		t.Fatalf("unexpected head target: %q %q %v", limb, mode, ok)
	}
	if _, _, ok := CommandSavePose.FreezeTarget(); ok {
		t.Fatal("save-pose should not have a freeze target")
	}

	arm, state, ok := CommandCloseRightHand.GripperTarget()
	if !ok || arm != LimbRightArm || state != GripperClosed {
		t.Fatalf("unexpected gripper target: %q %q %v", arm, state, ok)
	}
}
