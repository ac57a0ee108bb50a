package quark

import (
	"context"
	"net/http"
	"strconv"
)

type taskStateResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    *struct {
		TaskID         string `json:"task_id"`
		Status         int    `json:"status"`
		TaskTitle      string `json:"task_title"`
		ShareID        string `json:"share_id"`
		FinishedAmount int64  `json:"finished_amount"`
		TotalAmount    int64  `json:"total_amount"`
		SaveAs         *struct {
			ToPdirName string `json:"to_pdir_name"`
		} `json:"save_as"`
	} `json:"data"`
}

// QueryTask fetches one observation of an asynchronous task. attempt is
// the zero-based poll attempt index, echoed to the remote as
// retry_index. A non-ok envelope is classified by its code: quota
// exhaustion and missing destination map to their sentinels, anything
// else to ErrRemoteFailure with the remote message.
func (c *Client) QueryTask(ctx context.Context, taskID string, attempt int) (*TaskState, error) {
	q := c.commonQuery()
	q.Set("task_id", taskID)
	q.Set("retry_index", strconv.Itoa(attempt))

	var resp taskStateResponse
	if err := c.doJSON(ctx, http.MethodGet, c.driveURL("/task"), q, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Message != "ok" {
		return nil, remoteErr(classifyTaskCode(resp.Code), resp.Code, resp.Message)
	}

	if resp.Data == nil {
		return nil, remoteErr(ErrProtocol, resp.Code, "task response missing data")
	}

	state := &TaskState{
		TaskID:         taskID,
		Status:         resp.Data.Status,
		Title:          resp.Data.TaskTitle,
		ShareID:        resp.Data.ShareID,
		FinishedAmount: resp.Data.FinishedAmount,
		TotalAmount:    resp.Data.TotalAmount,
	}

	if resp.Data.SaveAs != nil {
		state.SaveDirName = resp.Data.SaveAs.ToPdirName
	}

	return state, nil
}
