package experiment

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moolen/kubetrace/internal/config"
	"github.com/moolen/kubetrace/internal/dataprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
)

func writeTrace(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	return path
}

const podUID = "2b5f3c1a-0000-4000-8000-000000000001"

func TestRun(t *testing.T) {
	k8s := writeTrace(t, "k8s.jsonl",
		`{"name":"k8s_ust:event","ts":100,"fields":{"op_name":"Event","op_ctx":"Name: pod-a, UID: `+podUID+`, Reason: Pulling"}}`,
		`{"name":"k8s_ust:event","ts":250,"fields":{"op_name":"Event","op_ctx":"Name: pod-a, UID: `+podUID+`, Reason: Started"}}`,
	)
	kernel := writeTrace(t, "kernel-0.jsonl",
		`{"name":"syscall_entry_mount","ts":10,"fields":{"context._procname":"runc:[2:INIT]","context._cgroup_ns":7,"dev_name":"/var/lib/kubelet/pods/`+podUID+`/volumes"}}`,
		`{"name":"sched_switch","ts":20,"fields":{"context._tid":1,"context._procname":"swapper","context._cgroup_ns":7,"cpu_id":0,"prev_tid":0,"next_tid":42}}`,
		`{"name":"sched_switch","ts":120,"fields":{"context._tid":42,"context._procname":"nginx","context._cgroup_ns":7,"cpu_id":0,"prev_tid":42,"next_tid":0}}`,
	)

	exp, err := Run(context.Background(), Options{
		KubernetesTrace: k8s,
		KernelTraces:    []string{kernel},
		Analysis:        config.Default().Analysis,
	})
	require.NoError(t, err)
	defer func() { assert.NoError(t, exp.Close()) }()

	assert.Equal(t, "k8s.jsonl", exp.Name)
	assert.Equal(t, 1, exp.Segments.Len())
	segs, err := exp.Segments.Segments()
	require.NoError(t, err)
	assert.Equal(t, int64(150), segs[0].Length())

	tree := exp.TimeGraph().FetchTree(context.Background())
	require.False(t, tree.Failed())
	require.Len(t, tree.Model, 2)
	assert.Equal(t, "pod-a", tree.Model[1].Name)

	uid, ok := exp.Associations.UID(7)
	require.True(t, ok)
	assert.Equal(t, podUID, uid)

	cpu := exp.CgroupCPU().FetchTree(context.Background(), dataprovider.NewTimeQuery(20, 120, 2), sets.New[int]())
	require.False(t, cpu.Failed())
	require.NotEmpty(t, cpu.Model)
	assert.Equal(t, "pod-a", cpu.Model[1].Labels[0])
}

func TestRunWithoutTraces(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestRunMissingTrace(t *testing.T) {
	exp, err := Run(context.Background(), Options{
		KubernetesTrace: filepath.Join(t.TempDir(), "missing.jsonl"),
		Analysis:        config.Default().Analysis,
	})
	assert.Error(t, err)
	require.NotNil(t, exp)
}

func TestRunSurvivesStartedBeforePulling(t *testing.T) {
	k8s := writeTrace(t, "k8s.jsonl",
		`{"name":"k8s_ust:event","ts":300,"fields":{"op_name":"Event","op_ctx":"Name: pod-x, UID: `+podUID+`, Reason: Pulling"}}`,
		`{"name":"k8s_ust:event","ts":200,"fields":{"op_name":"Event","op_ctx":"Name: pod-x, UID: `+podUID+`, Reason: Started"}}`,
	)
	exp, err := Run(context.Background(), Options{
		KubernetesTrace: k8s,
		Analysis:        config.Default().Analysis,
	})
	require.NoError(t, err)
	defer func() { assert.NoError(t, exp.Close()) }()

	assert.Equal(t, 0, exp.Segments.Len())
	tree := exp.TimeGraph().FetchTree(context.Background())
	require.False(t, tree.Failed())
	require.Len(t, tree.Model, 2)
	assert.Equal(t, "pod-x", tree.Model[1].Name)
}
