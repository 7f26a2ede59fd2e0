package services

import (
	"context"
	"testing"
	"time"

	"rpmt/internal/testutil"
	"rpmt/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecide(t *testing.T) {
	file := &Upload{Filename: "proof.png", Data: []byte("x")}
	tests := []struct {
		name string
		in   SlotInput
		want Action
	}{
		{name: "nothing", in: SlotInput{}, want: ActionKeep},
		{name: "empty upload field", in: SlotInput{Upload: &Upload{}}, want: ActionKeep},
		{name: "upload", in: SlotInput{Upload: file}, want: ActionReplace},
		{name: "clear", in: SlotInput{Clear: true}, want: ActionClear},
		{name: "clear wins over upload", in: SlotInput{Upload: file, Clear: true}, want: ActionClear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in))
		})
	}
}

func TestUniqueName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tests := []struct {
		in, want string
	}{
		{"proof.png", "proof_1700000000.png"},
		{"My Proof.PNG", "My_Proof_1700000000.png"},
		{"../../etc/passwd", "passwd_1700000000"},
		{`C:\scans\scan.v2.pdf`, "scan_v2_1700000000.pdf"},
		{".png", "file_1700000000.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, UniqueName(tt.in, now), tt.in)
	}
}

func TestIsEmptyProof(t *testing.T) {
	assert.True(t, IsEmptyProof(""))
	assert.True(t, IsEmptyProof(models.NoImage))
	assert.True(t, IsEmptyProof(models.NoPDF))
	assert.False(t, IsEmptyProof("proof_1700000000.png"))
}

func TestProofPlan_ClearOnEmptyIsNoop(t *testing.T) {
	env := newTestEnv(t)
	plan, err := env.proofs.Prepare(context.Background(), ProofInputs{
		SlotPublicationProof: {Clear: true},
		SlotPDF:              {Clear: true},
	})
	require.NoError(t, err)

	p := &models.Project{PublicationProof: models.NoImage, UtilizationProof: models.NoImage, PDF: models.NoPDF}
	obsolete := plan.ApplyTo(p)
	assert.Empty(t, obsolete)
	assert.Equal(t, models.NoImage, p.PublicationProof)
	assert.Equal(t, models.NoPDF, p.PDF)
}

func TestProofPlan_NewProjectGetsSentinels(t *testing.T) {
	env := newTestEnv(t)
	plan, err := env.proofs.Prepare(context.Background(), nil)
	require.NoError(t, err)

	p := &models.Project{}
	assert.Empty(t, plan.ApplyTo(p))
	assert.Equal(t, models.NoImage, p.PublicationProof)
	assert.Equal(t, models.NoImage, p.UtilizationProof)
	assert.Equal(t, models.NoPDF, p.PDF)
}

func TestProofPlan_ReplaceSameFilenameGetsNewName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "faculty", models.RoleFaculty)
	existing := insertProject(t, env.db, user, "10.1000/a")
	require.NoError(t, env.db.Model(existing).Update("publication_proof", "proof_1700000000.png").Error)
	existing.PublicationProof = "proof_1700000000.png"

	plan, err := env.proofs.Prepare(ctx, ProofInputs{
		SlotPublicationProof: {Upload: &Upload{Filename: "proof.png", ContentType: "image/png", Data: []byte("new")}},
	})
	require.NoError(t, err)
	require.NoError(t, plan.Upload(ctx))

	obsolete := plan.ApplyTo(existing)
	assert.Equal(t, []string{"proof_1700000000.png"}, obsolete)
	assert.Equal(t, "proof_1700000000-1.png", existing.PublicationProof)
	assert.True(t, env.store.Has("proof_1700000000-1.png"))
	plan.Done()
}

func TestProofPlan_SkipsNamesQueuedForDeletion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.db.Create(&models.PendingDeletion{ObjectKey: "proof_1700000000.png"}).Error)

	plan, err := env.proofs.Prepare(ctx, ProofInputs{
		SlotPublicationProof: {Upload: &Upload{Filename: "proof.png", ContentType: "image/png", Data: []byte("new")}},
	})
	require.NoError(t, err)
	defer plan.Done()

	p := &models.Project{}
	plan.ApplyTo(p)
	assert.Equal(t, "proof_1700000000-1.png", p.PublicationProof)
}

func TestProofPlan_NamesUniqueWithinPlan(t *testing.T) {
	env := newTestEnv(t)
	plan, err := env.proofs.Prepare(context.Background(), ProofInputs{
		SlotPublicationProof: {Upload: &Upload{Filename: "scan.pdf"}},
		SlotUtilizationProof: {Upload: &Upload{Filename: "scan.pdf"}},
		SlotPDF:              {Upload: &Upload{Filename: "scan.pdf"}},
	})
	require.NoError(t, err)

	p := &models.Project{}
	plan.ApplyTo(p)
	assert.Equal(t, "scan_1700000000.pdf", p.PublicationProof)
	assert.Equal(t, "scan_1700000000-1.pdf", p.UtilizationProof)
	assert.Equal(t, "scan_1700000000-2.pdf", p.PDF)
	plan.Done()
}

func TestProofPlan_RejectsFileType(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.proofs.Prepare(context.Background(), ProofInputs{
		SlotPublicationProof: {Upload: &Upload{Filename: "run.exe"}},
		SlotPDF:              {Upload: &Upload{Filename: "scan.png"}},
		SlotUtilizationProof: {Upload: &Upload{Filename: "ok.jpg"}},
	})
	verr, ok := IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, verr.Fields, "publication_proof")
	assert.Contains(t, verr.Fields, "pdf")
	assert.NotContains(t, verr.Fields, "utilization_proof")
}

func TestProofPlan_UploadFailureCompensates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.FailUpload["b_1700000000.png"] = true

	plan, err := env.proofs.Prepare(ctx, ProofInputs{
		SlotPublicationProof: {Upload: &Upload{Filename: "a.png", Data: []byte("a")}},
		SlotUtilizationProof: {Upload: &Upload{Filename: "b.png", Data: []byte("b")}},
	})
	require.NoError(t, err)

	err = plan.Upload(ctx)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Empty(t, env.store.Keys())
}

func TestProofPlan_DiscardEnqueuesUndeletable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.FailDelete["a_1700000000.png"] = true

	plan, err := env.proofs.Prepare(ctx, ProofInputs{
		SlotPublicationProof: {Upload: &Upload{Filename: "a.png", Data: []byte("a")}},
	})
	require.NoError(t, err)
	require.NoError(t, plan.Upload(ctx))
	plan.Discard(ctx)

	pending, err := env.outbox.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a_1700000000.png", pending[0].ObjectKey)
}

func TestAttachedProofs(t *testing.T) {
	p := &models.Project{PublicationProof: "a.png", UtilizationProof: models.NoImage, PDF: "doc_123.pdf"}
	assert.Equal(t, []string{"a.png", "doc_123.pdf"}, AttachedProofs(p))
}
